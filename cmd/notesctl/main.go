// Command notesctl administers a notes-ledger deployment: it applies
// migrations, imports content, issues participant tokens and audits scores.
package main

func main() {
	Execute()
}
