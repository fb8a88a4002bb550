// The main package for the hn-crawler executable.
package main

import "github.com/JakeFAU/hn-crawler/cmd"

func main() {
	cmd.Execute()
}
