// sf sends files over the local network
package main

import "sf/cmd"

func main() {
	cmd.Execute()
}
