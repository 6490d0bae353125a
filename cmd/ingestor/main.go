// Command ingestor runs the article ingestion pipeline CLI.
package main

import "github.com/pressfeed/ingestor/cmd"

func main() {
	cmd.Execute()
}
