// Command procsim runs the example models on the process-oriented simulation
// kernel.
package main

import "github.com/sarchlab/procsim/procsim/cmd"

func main() {
	cmd.Execute()
}
