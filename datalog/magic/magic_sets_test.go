package magic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmoreau/semidatalog/datalog/rule"
)

// transitiveClosureProgram mirrors the engine's own canonical example:
// tc(x,y) <- e(x,y). tc(x,z) <- e(x,y), tc(y,z).
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

func TestMagicRelationNamesEncodeBoundPattern(t *testing.T) {
	assert.Equal(t, rule.Symbol("magic_tc_bf"), MagicRelation("tc", []bool{true, false}))
	assert.Equal(t, rule.Symbol("magic_tc_fb"), MagicRelation("tc", []bool{false, true}))
}

func TestAdornAtomMarksConstantsAndBoundVarsOnly(t *testing.T) {
	x, y := rule.Var("x"), rule.Var("y")
	atom := rule.Atom{Relation: "e", Args: []rule.Term{x, y, rule.Const{Value: "k"}}}
	bound := map[rule.Var]bool{x: true}

	adorned := fromAtomAndBoundVars(atom, bound)
	assert.Equal(t, "bfb", adorned.PatternString())
}

func TestTransformProducesAdornedRulesForBoundQuery(t *testing.T) {
	program := transitiveClosureProgram()
	rewritten := Transform(program, "tc", []bool{true, false})

	require.NotEmpty(t, rewritten.Rules)

	var sawAdornedHead, sawMagicGuard bool
	for _, r := range rewritten.Rules {
		if r.Head.Relation == "tc_bf" {
			sawAdornedHead = true
			require.NotEmpty(t, r.Body)
			assert.Equal(t, MagicRelation("tc", []bool{true, false}), r.Body[0].Relation)
			sawMagicGuard = true
		}
	}
	assert.True(t, sawAdornedHead, "expected a tc_bf adorned head rule")
	assert.True(t, sawMagicGuard, "expected every adorned rule to open with its magic guard atom")
}

func TestTransformIsDeterministicOnRuleCount(t *testing.T) {
	program := transitiveClosureProgram()
	first := Transform(program, "tc", []bool{true, false})
	second := Transform(program, "tc", []bool{true, false})
	assert.Equal(t, len(first.Rules), len(second.Rules))
}

func TestTransformPreservesExtensionalDeclarations(t *testing.T) {
	program := transitiveClosureProgram()
	rewritten := Transform(program, "tc", []bool{true, false})
	assert.Equal(t, program.Extensional, rewritten.Extensional)
}
