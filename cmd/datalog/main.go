// Command datalog is a small demo/REPL over the runtime package: it
// loads a fixed transitive-closure program, seeds it with a demo
// edge set, and lets you insert/remove/poll/query it either as a
// scripted demo or interactively. Building a Program from surface
// syntax is out of scope for this engine (programs are Go values), so
// the REPL's own command language is a thin whitespace-tokenized
// stand-in, not a Datalog parser.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/nmoreau/semidatalog/datalog"
	"github.com/nmoreau/semidatalog/datalog/annotations"
	"github.com/nmoreau/semidatalog/datalog/query"
	"github.com/nmoreau/semidatalog/datalog/rule"
	"github.com/nmoreau/semidatalog/runtime"
)

func main() {
	var interactive bool
	var help bool
	var verbose bool
	var queryStr string

	flag.BoolVar(&interactive, "i", false, "interactive mode")
	flag.BoolVar(&help, "h", false, "show help")
	flag.BoolVar(&verbose, "verbose", false, "verbose mode (show evaluator annotations)")
	flag.StringVar(&queryStr, "query", "", "run a single query and exit, e.g. 'tc a _'")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "An incremental, semi-naive Datalog reasoner.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                      # Run the transitive-closure demo\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -i                   # Interactive mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -verbose -i          # Interactive mode with annotations\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -query 'tc a _'      # Run a single pattern query and exit\n", os.Args[0])
	}
	flag.Parse()

	if help {
		flag.Usage()
		os.Exit(0)
	}

	var handler annotations.Handler
	if verbose {
		formatter := annotations.NewOutputFormatter(os.Stderr)
		handler = annotations.Handler(formatter.Handle)
	}

	rt, err := runtime.New(transitiveClosureProgram(), handler)
	if err != nil {
		log.Fatalf("invalid program: %v", err)
	}
	seedDemoEdges(rt)
	rt.Poll()

	switch {
	case queryStr != "":
		runSinglePatternQuery(rt, queryStr)
	case interactive:
		runInteractive(rt)
	default:
		runDemo(rt)
	}
}

// transitiveClosureProgram builds tc(x,y) <- e(x,y). tc(x,z) <-
// e(x,y), tc(y,z). as a Go value, the program's canonical form now
// that surface syntax is out of scope.
func transitiveClosureProgram() *rule.Program {
	x, y, z := rule.Var("x"), rule.Var("y"), rule.Var("z")
	base := rule.Rule{
		Head: rule.Atom{Relation: "tc", Args: []rule.Term{x, y}},
		Body: []rule.BodyAtom{{Atom: rule.Atom{Relation: "e", Args: []rule.Term{x, y}}}},
	}
	step := rule.Rule{
		Head: rule.Atom{Relation: "tc", Args: []rule.Term{x, z}},
		Body: []rule.BodyAtom{
			{Atom: rule.Atom{Relation: "e", Args: []rule.Term{x, y}}},
			{Atom: rule.Atom{Relation: "tc", Args: []rule.Term{y, z}}},
		},
	}
	return &rule.Program{
		Rules:       []rule.Rule{base, step},
		Extensional: map[rule.Symbol]int{"e": 2},
	}
}

func seedDemoEdges(rt *runtime.Runtime) {
	edges := [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}}
	for _, e := range edges {
		if err := rt.Insert("e", e[0], e[1]); err != nil {
			log.Fatalf("seed insert: %v", err)
		}
	}
}

func runDemo(rt *runtime.Runtime) {
	fmt.Println("=== Semi-naive Datalog Demo ===")
	fmt.Println("\nProgram: tc(x,y) <- e(x,y).  tc(x,z) <- e(x,y), tc(y,z).")
	fmt.Println("Seeded edges: a->b, b->c, c->d")

	printQuery(rt, query.New("tc", query.Any(), query.Any()))

	fmt.Println("\nInserting d->e and polling...")
	if err := rt.Insert("e", "d", "e"); err != nil {
		log.Fatalf("insert: %v", err)
	}
	rt.Poll()
	printQuery(rt, query.New("tc", query.Any(), query.Any()))

	fmt.Println("\nRemoving c->d and polling...")
	if err := rt.Remove(query.New("e", query.Bound("c"), query.Bound("d"))); err != nil {
		log.Fatalf("remove: %v", err)
	}
	rt.Poll()
	printQuery(rt, query.New("tc", query.Any(), query.Any()))
}

func runInteractive(rt *runtime.Runtime) {
	fmt.Println("=== Semi-naive Datalog Interactive Mode ===")
	fmt.Println("Commands:")
	fmt.Println("  insert <rel> <args...>   - queue an extensional insert")
	fmt.Println("  remove <rel> <args|_...> - queue extensional removal of every match, _ marks a wildcard column")
	fmt.Println("  poll                     - run insertion/deletion to a fixed point")
	fmt.Println("  safe                     - report whether the store has quiesced")
	fmt.Println("  contains <rel> <args...> - test membership in the settled state")
	fmt.Println("  query <rel> <args|_...>  - pattern query, _ marks a wildcard column")
	fmt.Println("  .exit                    - exit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == ".exit" {
			return
		}
		runCommand(rt, fields)
	}
}

func runCommand(rt *runtime.Runtime, fields []string) {
	switch fields[0] {
	case "insert":
		rel, vals, err := parseRelArgs(fields[1:])
		if err != nil {
			fmt.Println(err)
			return
		}
		if err := rt.Insert(rel, vals...); err != nil {
			fmt.Println(err)
		}

	case "remove":
		if len(fields) < 2 {
			fmt.Println("usage: remove <rel> <args|_...>")
			return
		}
		if err := rt.Remove(buildPattern(fields[1], fields[2:])); err != nil {
			fmt.Println(err)
		}

	case "poll":
		rt.Poll()
		fmt.Println("ok")

	case "safe":
		fmt.Println(rt.Safe())

	case "contains":
		rel, vals, err := parseRelArgs(fields[1:])
		if err != nil {
			fmt.Println(err)
			return
		}
		ok, err := rt.Contains(rel, vals...)
		if err != nil {
			fmt.Println(err)
			return
		}
		fmt.Println(ok)

	case "query":
		if len(fields) < 2 {
			fmt.Println("usage: query <rel> <args|_...>")
			return
		}
		printQuery(rt, buildPattern(fields[1], fields[2:]))

	default:
		fmt.Println("unknown command, see .exit or the command list above")
	}
}

func runSinglePatternQuery(rt *runtime.Runtime, queryStr string) {
	fields := strings.Fields(queryStr)
	if len(fields) < 1 {
		fmt.Fprintln(os.Stderr, "usage: -query '<rel> <args|_...>'")
		os.Exit(1)
	}
	printQuery(rt, buildPattern(fields[0], fields[1:]))
}

func buildPattern(rel string, args []string) query.Pattern {
	cols := make([]query.Column, len(args))
	for i, a := range args {
		if a == "_" {
			cols[i] = query.Any()
			continue
		}
		cols[i] = query.Bound(parseValue(a))
	}
	return query.New(rule.Symbol(rel), cols...)
}

func printQuery(rt *runtime.Runtime, p query.Pattern) {
	rows, err := rt.Query(p)
	if err != nil {
		fmt.Println(err)
		return
	}
	table := make([][]string, len(rows))
	for i, row := range rows {
		strs := make([]string, len(row))
		for j, v := range row {
			strs[j] = fmt.Sprintf("%v", v)
		}
		table[i] = strs
	}
	fmt.Print(annotations.RenderTuples(table, len(p.Columns)))
}

func parseRelArgs(fields []string) (rule.Symbol, []datalog.Value, error) {
	if len(fields) < 1 {
		return "", nil, fmt.Errorf("usage: <cmd> <rel> <args...>")
	}
	vals := make([]datalog.Value, len(fields)-1)
	for i, f := range fields[1:] {
		vals[i] = parseValue(f)
	}
	return rule.Symbol(fields[0]), vals, nil
}

// parseValue converts one REPL token to a datalog.Value: int64 or
// float64 if it parses as a number, string otherwise.
func parseValue(s string) datalog.Value {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
