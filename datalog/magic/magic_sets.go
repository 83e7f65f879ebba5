package magic

import "github.com/nmoreau/semidatalog/datalog/rule"

// MagicRelation names the magic predicate for a query against rel
// bound at the positions marked true in bound, e.g. MagicRelation("tc",
// []bool{true, false}) is "magic_tc_bf". Insert the query's bound
// values as a fact of this relation before polling a Transform'd
// program, to seed the sideways-information-passing derivation.
func MagicRelation(rel rule.Symbol, bound []bool) rule.Symbol {
	pattern := make([]byte, len(bound))
	for i, b := range bound {
		if b {
			pattern[i] = 'b'
		} else {
			pattern[i] = 'f'
		}
	}
	return rule.Symbol("magic_" + string(rel) + "_" + string(pattern))
}

// Transform rewrites program into its magic-sets form for one query
// against queryRel with the given bound-column mask: every
// intensional rule reachable from queryRel gains a magic-predicate
// guard restricting it to groundings consistent with the query's
// bound columns, and a magic rule is emitted for each place binding
// information reaches a new derived predicate. The rewritten program
// still needs the seed fact named by MagicRelation inserted before
// the first Poll.
func Transform(program *rule.Program, queryRel rule.Symbol, boundMask []bool) *rule.Program {
	var transformed []rule.Rule
	processed := make(map[string]bool)
	seenRules := make(map[string]bool)
	var toProcess []AdornedAtom

	if rules := rulesForPredicate(program, queryRel); len(rules) > 0 {
		adornment := make([]Adornment, len(boundMask))
		for i, b := range boundMask {
			if b {
				adornment[i] = Bound
			} else {
				adornment[i] = Free
			}
		}
		toProcess = append(toProcess, AdornedAtom{Atom: rules[0].Head, Adornment: adornment})
	}

	for len(toProcess) > 0 {
		adornedPred := toProcess[len(toProcess)-1]
		toProcess = toProcess[:len(toProcess)-1]

		k := adornedKey(adornedPred)
		if processed[k] {
			continue
		}
		processed[k] = true

		for _, r := range rulesForPredicate(program, adornedPred.Atom.Relation) {
			for _, newAdorned := range collectNewAdornedPredicates(program, r, adornedPred) {
				if hasBoundPosition(newAdorned) {
					toProcess = append(toProcess, newAdorned)
				}
			}

			for _, mr := range createMagicRules(program, r, adornedPred) {
				if seenRules[mr.String()] {
					continue
				}
				if hasRuleWithSameHead(transformed, mr) {
					continue
				}
				seenRules[mr.String()] = true
				transformed = append(transformed, mr)
			}

			modified := modifyOriginalRule(program, r, adornedPred)
			if !seenRules[modified.String()] {
				seenRules[modified.String()] = true
				transformed = append(transformed, modified)
			}
		}
	}

	return &rule.Program{Rules: transformed, Extensional: program.Extensional}
}

func hasBoundPosition(a AdornedAtom) bool {
	for _, ad := range a.Adornment {
		if ad == Bound {
			return true
		}
	}
	return false
}

func hasRuleWithSameHead(rules []rule.Rule, candidate rule.Rule) bool {
	for _, r := range rules {
		if r.Head.Relation == candidate.Head.Relation && atomArgsEqual(r.Head.Args, candidate.Head.Args) {
			return true
		}
	}
	return false
}

func adornedKey(a AdornedAtom) string {
	return string(a.Atom.Relation) + ":" + a.PatternString()
}

func atomArgsEqual(a, b []rule.Term) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// rulesForPredicate returns every rule whose head names sym.
func rulesForPredicate(program *rule.Program, sym rule.Symbol) []rule.Rule {
	var out []rule.Rule
	for _, r := range program.Rules {
		if r.Head.Relation == sym {
			out = append(out, r)
		}
	}
	return out
}

// isDerivedPredicate reports whether sym is ever a rule head, i.e. is
// intensional.
func isDerivedPredicate(program *rule.Program, sym rule.Symbol) bool {
	for _, r := range program.Rules {
		if r.Head.Relation == sym {
			return true
		}
	}
	return false
}

// computeBoundVarsAtPosition walks r.Body[0:pos] forward from
// initial, propagating boundness through any atom that already uses
// a bound variable: a base atom binds every variable it mentions, a
// derived atom binds (conservatively) only its first two argument
// variables, a sideways-information-passing assumption that holds for
// binary intensional relations.
func computeBoundVarsAtPosition(program *rule.Program, r rule.Rule, pos int, initial map[rule.Var]bool) map[rule.Var]bool {
	bound := make(map[rule.Var]bool, len(initial))
	for v := range initial {
		bound[v] = true
	}
	for i := 0; i < pos; i++ {
		atom := r.Body[i].Atom
		if !atomConnectsToBound(atom, bound) {
			continue
		}
		if !isDerivedPredicate(program, atom.Relation) {
			for _, arg := range atom.Args {
				if v, ok := arg.(rule.Var); ok {
					bound[v] = true
				}
			}
			continue
		}
		for _, idx := range []int{0, 1} {
			if idx >= len(atom.Args) {
				break
			}
			if v, ok := atom.Args[idx].(rule.Var); ok {
				bound[v] = true
			}
		}
	}
	return bound
}

func atomConnectsToBound(atom rule.Atom, bound map[rule.Var]bool) bool {
	for _, arg := range atom.Args {
		if v, ok := arg.(rule.Var); ok && bound[v] {
			return true
		}
	}
	return false
}

// collectNewAdornedPredicates finds every derived body atom of r
// whose binding, adorned against the bindings accumulated from the
// head plus everything to its left, should itself be queued for
// magic-sets processing.
func collectNewAdornedPredicates(program *rule.Program, r rule.Rule, adornedHead AdornedAtom) []AdornedAtom {
	var out []AdornedAtom
	current := boundVars(adornedHead)
	for pos, ba := range r.Body {
		atom := ba.Atom
		if !isDerivedPredicate(program, atom.Relation) {
			continue
		}
		boundAtPos := computeBoundVarsAtPosition(program, r, pos, current)
		adornedBody := fromAtomAndBoundVars(atom, boundAtPos)
		for v := range boundVars(adornedBody) {
			current[v] = true
		}
		out = append(out, adornedBody)
	}
	return out
}

// createMagicRules builds one magic rule per point in r's body where
// binding information newly reaches a derived predicate: the magic
// rule's body is the chain of magic/base atoms that established the
// binding so far, and its head is the magic predicate for that
// derived atom adorned the same way as adornedHead.
func createMagicRules(program *rule.Program, r rule.Rule, adornedHead AdornedAtom) []rule.Rule {
	var magicRules []rule.Rule
	bindingChain := []rule.BodyAtom{{Atom: makeMagicAtom(adornedHead)}}
	bound := boundVars(adornedHead)

	for _, ba := range r.Body {
		atom := ba.Atom
		usesBound := atomConnectsToBound(atom, bound)

		if !isDerivedPredicate(program, atom.Relation) {
			if usesBound {
				bindingChain = append(bindingChain, ba)
				for _, arg := range atom.Args {
					if v, ok := arg.(rule.Var); ok {
						bound[v] = true
					}
				}
			}
			continue
		}

		if !usesBound {
			continue
		}

		magicHeadAdorned := zipAdornment(atom, adornedHead.Adornment)
		magicHead := makeMagicAtom(magicHeadAdorned)

		if !chainContains(bindingChain, magicHead) {
			magicRules = append(magicRules, rule.Rule{
				Head: magicHead,
				Body: append([]rule.BodyAtom(nil), bindingChain...),
			})
		}

		bindingChain = append(bindingChain, modifyBodyAtom(ba, magicHeadAdorned))
		for _, arg := range atom.Args {
			if v, ok := arg.(rule.Var); ok {
				bound[v] = true
			}
		}
	}
	return magicRules
}

func chainContains(chain []rule.BodyAtom, atom rule.Atom) bool {
	for _, ba := range chain {
		if atomEqual(ba.Atom, atom) {
			return true
		}
	}
	return false
}

// modifyOriginalRule rewrites r into its magic-guarded form: a magic
// atom guard is prepended, and every derived body atom is renamed to
// its adorned form (queryRel_bf-style) so the rewritten program only
// ever joins against the restricted, adorned relations.
func modifyOriginalRule(program *rule.Program, r rule.Rule, adornedHead AdornedAtom) rule.Rule {
	newBody := []rule.BodyAtom{{Atom: makeMagicAtom(adornedHead)}}
	for _, ba := range r.Body {
		if isDerivedPredicate(program, ba.Relation) {
			adorned := zipAdornment(ba.Atom, adornedHead.Adornment)
			newBody = append(newBody, modifyBodyAtom(ba, adorned))
		} else {
			newBody = append(newBody, ba)
		}
	}
	return rule.Rule{Head: adornedHeadAtom(r.Head, adornedHead), Body: newBody}
}

// zipAdornment reapplies adornment (computed against one atom) to a
// second atom of possibly different arity, truncating to the shorter
// length. This assumes a rule's recursive predicates share arity with
// its head, which holds for every program this package is exercised
// against.
func zipAdornment(atom rule.Atom, adornment []Adornment) AdornedAtom {
	n := len(atom.Args)
	if len(adornment) < n {
		n = len(adornment)
	}
	return AdornedAtom{Atom: atom, Adornment: append([]Adornment(nil), adornment[:n]...)}
}

func adornedHeadAtom(original rule.Atom, adorned AdornedAtom) rule.Atom {
	return rule.Atom{
		Relation: rule.Symbol(string(original.Relation) + "_" + adorned.PatternString()),
		Args:     original.Args,
	}
}

func modifyBodyAtom(original rule.BodyAtom, adorned AdornedAtom) rule.BodyAtom {
	return rule.BodyAtom{
		Atom: rule.Atom{
			Relation: rule.Symbol(string(original.Relation) + "_" + adorned.PatternString()),
			Args:     original.Args,
		},
		Negated: original.Negated,
	}
}

// makeMagicAtom builds the magic atom itself: the magic relation name
// for a, applied to only a's Bound-adorned arguments.
func makeMagicAtom(a AdornedAtom) rule.Atom {
	var terms []rule.Term
	for i, ad := range a.Adornment {
		if ad == Bound {
			terms = append(terms, a.Atom.Args[i])
		}
	}
	return rule.Atom{Relation: MagicRelation(a.Atom.Relation, adornmentMask(a.Adornment)), Args: terms}
}

func adornmentMask(adornment []Adornment) []bool {
	mask := make([]bool, len(adornment))
	for i, ad := range adornment {
		mask[i] = ad == Bound
	}
	return mask
}
