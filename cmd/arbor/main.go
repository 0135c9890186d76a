// Command arbor answers questions by planning, executing and concluding over a knowledge base.
package main

func main() {
	Execute()
}
