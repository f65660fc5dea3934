// Command boardroom runs the agent orchestrator.
package main

func main() {
	Execute()
}
