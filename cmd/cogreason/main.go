// Package main demonstrates basic cogreason usage patterns.
//
// This example shows how to feed assertions and rules into the
// orchestrator and ask it questions against the resulting knowledge base.
package main

import (
	"fmt"
	"time"

	"github.com/cogreason/reasoner/pkg/eventbus"
	"github.com/cogreason/reasoner/pkg/orchestrator"
	"github.com/cogreason/reasoner/pkg/parser"
	"github.com/cogreason/reasoner/pkg/reasoner"
	"github.com/cogreason/reasoner/pkg/term"
)

func main() {
	fmt.Println("=== cogreason Examples ===")
	fmt.Println()

	basicForwardChaining()
	orientedRewriting()
	universalInstantiation()
	backwardChainingQuery()
}

// basicForwardChaining demonstrates a rule firing off a plain fact.
func basicForwardChaining() {
	fmt.Println("1. Forward Chaining:")

	o := orchestrator.New(orchestrator.DefaultKBCapacity, reasoner.DefaultConfig())
	defer o.Shutdown()

	must(o.SubmitText("(=> (instance ?x Dog) (instance ?x Animal))", "demo", ""))
	must(o.SubmitText("(instance Rex Dog)", "demo", ""))

	waitForQuiescence()

	answer := o.Query(eventbus.NewQueryRequest("", eventbus.AskTrueFalse, mustParse("(instance Rex Animal)"), "", nil))
	fmt.Printf("   (instance Rex Animal) derived? => %v\n", answer.Status == eventbus.Success)
	fmt.Println()
}

// orientedRewriting demonstrates an equality rewriting an existing fact.
func orientedRewriting() {
	fmt.Println("2. Oriented Rewriting:")

	o := orchestrator.New(orchestrator.DefaultKBCapacity, reasoner.DefaultConfig())
	defer o.Shutdown()

	must(o.SubmitText("(likes Alice (favouriteDish Bob))", "demo", ""))
	must(o.SubmitText("(= (favouriteDish Bob) Pizza)", "demo", ""))

	waitForQuiescence()

	answer := o.Query(eventbus.NewQueryRequest("", eventbus.AskTrueFalse, mustParse("(likes Alice Pizza)"), "", nil))
	fmt.Printf("   (likes Alice Pizza) derived? => %v\n", answer.Status == eventbus.Success)
	fmt.Println()
}

// universalInstantiation demonstrates a quantified fact ground out against
// a concrete individual.
func universalInstantiation() {
	fmt.Println("3. Universal Instantiation:")

	o := orchestrator.New(orchestrator.DefaultKBCapacity, reasoner.DefaultConfig())
	defer o.Shutdown()

	must(o.SubmitText("(forall (?x) (instance ?x Penguin))", "demo", ""))
	must(o.SubmitText("(instance Pingu Penguin)", "demo", ""))

	waitForQuiescence()

	fmt.Printf("   rules/universals processed (see bus logs for derivations)\n")
	fmt.Println()
}

// backwardChainingQuery demonstrates asking for bindings against a rule and
// a small fact base.
func backwardChainingQuery() {
	fmt.Println("4. Backward Chaining:")

	o := orchestrator.New(orchestrator.DefaultKBCapacity, reasoner.DefaultConfig())
	defer o.Shutdown()

	must(o.SubmitText("(=> (instance ?x Dog) (instance ?x Animal))", "demo", ""))
	must(o.SubmitText("(instance Rex Dog)", "demo", ""))
	must(o.SubmitText("(instance Fido Dog)", "demo", ""))

	waitForQuiescence()

	answer := o.Query(eventbus.NewQueryRequest("", eventbus.AskBindings, mustParse("(instance ?who Animal)"), "", nil))
	fmt.Printf("   Who is an Animal? => %d binding(s)\n", len(answer.Bindings))
	for _, b := range answer.Bindings {
		fmt.Printf("     ?who = %v\n", b["?who"])
	}
	fmt.Println()
}

func mustParse(s string) *term.Term {
	t, err := parser.Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// waitForQuiescence gives the asynchronous event bus a moment to finish
// dispatching the reasoner plugins' reactions before a query is issued.
// A production caller would instead wait on a quiescence signal; this demo
// keeps it simple.
func waitForQuiescence() {
	time.Sleep(50 * time.Millisecond)
}
