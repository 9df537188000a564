// Command toril is the editorial CMS core CLI: manage articles and authors
// locally, archive and restore, and publish the consolidated dataset to the
// GitHub-hosted document the static site reads.
package main

func main() {
	Execute()
}
