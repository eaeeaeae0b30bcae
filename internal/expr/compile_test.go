package expr

import (
	"testing"

	"goflowwriter/internal/domain"
)

func rule(sheet, variable, op string, value any) domain.ConditionRule {
	return domain.ConditionRule{Sheet: sheet, Variable: variable, Operator: op, Value: value}
}

func TestCompileConditionEmptyTree(t *testing.T) {
	y := NewYarnDialect()
	if got := CompileCondition(nil, y); got != "true" {
		t.Fatalf("nil tree = %q", got)
	}
	if got := CompileCondition(&domain.ConditionTree{Logic: "all"}, y); got != "true" {
		t.Fatalf("empty tree = %q", got)
	}
}

func TestCompileConditionYarn(t *testing.T) {
	tree := &domain.ConditionTree{
		Logic: "all",
		Rules: []domain.ConditionRule{
			rule("mc.jaime", "health", "gte", float64(10)),
			rule("mc.jaime", "alive", "is_true", nil),
		},
	}
	got := CompileCondition(tree, NewYarnDialect())
	want := "($mc_jaime_health >= 10 && $mc_jaime_alive)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCompileConditionAnyLogic(t *testing.T) {
	tree := &domain.ConditionTree{
		Logic: "any",
		Rules: []domain.ConditionRule{
			rule("w", "day", "eq", "monday"),
			rule("w", "day", "eq", "tuesday"),
		},
	}
	got := CompileCondition(tree, InkDialect{})
	want := `(w_day == "monday" || w_day == "tuesday")`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCompileConditionOperators(t *testing.T) {
	y := NewYarnDialect()
	cases := []struct {
		r    domain.ConditionRule
		want string
	}{
		{rule("s", "v", "eq", float64(1)), "$s_v == 1"},
		{rule("s", "v", "neq", float64(1)), "$s_v != 1"},
		{rule("s", "v", "gt", float64(2)), "$s_v > 2"},
		{rule("s", "v", "lt", 2.5), "$s_v < 2.5"},
		{rule("s", "v", "lte", float64(3)), "$s_v <= 3"},
		{rule("s", "v", "is_false", nil), "!$s_v"},
		{rule("s", "v", "is_nil", nil), `$s_v == ""`},
		{rule("s", "v", "warp", nil), "true"}, // unknown operator degrades
	}
	for i, c := range cases {
		tree := &domain.ConditionTree{Logic: "all", Rules: []domain.ConditionRule{c.r}}
		if got := CompileCondition(tree, y); got != c.want {
			t.Errorf("case %d: got %q, want %q", i, got, c.want)
		}
	}
}

func TestYarnContainsRecordsRuntimeFunction(t *testing.T) {
	y := NewYarnDialect()
	tree := &domain.ConditionTree{Logic: "all", Rules: []domain.ConditionRule{
		rule("mc", "inventory", "contains", "key"),
	}}
	got := CompileCondition(tree, y)
	if got != `str_contains($mc_inventory, "key")` {
		t.Fatalf("got %q", got)
	}
	fns := y.RequiredFunctions()
	if len(fns) != 1 || fns[0] != "str_contains" {
		t.Fatalf("required functions = %v", fns)
	}
}

func TestInkContainsIsNative(t *testing.T) {
	tree := &domain.ConditionTree{Logic: "all", Rules: []domain.ConditionRule{
		rule("mc", "inventory", "contains", "key"),
	}}
	if got := CompileCondition(tree, InkDialect{}); got != `mc_inventory ? "key"` {
		t.Fatalf("got %q", got)
	}
}

func TestCompileConditionLua(t *testing.T) {
	tree := &domain.ConditionTree{Logic: "all", Rules: []domain.ConditionRule{
		rule("mc.jaime", "mood", "neq", "angry"),
		rule("mc.jaime", "gone", "is_nil", nil),
	}}
	got := CompileCondition(tree, LuaDialect{})
	want := `(Variable["mc_jaime_mood"] ~= "angry" and Variable["mc_jaime_gone"] == nil)`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCompileCaseGuard(t *testing.T) {
	tree := &domain.ConditionTree{Logic: "all", Rules: []domain.ConditionRule{
		rule("mc", "mood", "eq", "happy"),
	}}
	y := NewYarnDialect()
	if got := CompileCaseGuard(tree, "true", y); got != `$mc_mood == "happy"` {
		t.Fatalf("true case = %q", got)
	}
	if got := CompileCaseGuard(tree, "false", y); got != `!($mc_mood == "happy")` {
		t.Fatalf("false case = %q", got)
	}
	// Multi-way select matches the subject variable against the case value.
	if got := CompileCaseGuard(tree, "grumpy", y); got != `$mc_mood == "grumpy"` {
		t.Fatalf("multiway case = %q", got)
	}
	if got := CompileCaseGuard(nil, "true", y); got != "true" {
		t.Fatalf("nil tree guard = %q", got)
	}
}

func TestCompileAssignmentYarn(t *testing.T) {
	y := NewYarnDialect()
	cases := []struct {
		a    domain.Assignment
		want string
	}{
		{domain.Assignment{Sheet: "mc", Variable: "gold", Operator: "set", Value: float64(5)}, "<<set $mc_gold to 5>>"},
		{domain.Assignment{Sheet: "mc", Variable: "alive", Operator: "set_true"}, "<<set $mc_alive to true>>"},
		{domain.Assignment{Sheet: "mc", Variable: "alive", Operator: "set_false"}, "<<set $mc_alive to false>>"},
		{domain.Assignment{Sheet: "mc", Variable: "alive", Operator: "toggle"}, "<<set $mc_alive to !($mc_alive)>>"},
		{domain.Assignment{Sheet: "mc", Variable: "gold", Operator: "add", Value: float64(2)}, "<<set $mc_gold to $mc_gold + 2>>"},
		{domain.Assignment{Sheet: "mc", Variable: "gold", Operator: "subtract", Value: float64(2)}, "<<set $mc_gold to $mc_gold - 2>>"},
		{domain.Assignment{Sheet: "mc", Variable: "name", Operator: "clear"}, `<<set $mc_name to "">>`},
		{domain.Assignment{Sheet: "mc", Variable: "gold", Operator: "frobnicate"}, ""},
		{domain.Assignment{}, ""},
	}
	for i, c := range cases {
		if got := CompileAssignment(c.a, y, nil); got != c.want {
			t.Errorf("case %d: got %q, want %q", i, got, c.want)
		}
	}
}

func TestCompileAssignmentClearUsesDeclaredDefault(t *testing.T) {
	defaults := func(sheet, variable string) (any, bool) {
		if sheet == "mc" && variable == "gold" {
			return float64(0), true
		}
		return nil, false
	}
	a := domain.Assignment{Sheet: "mc", Variable: "gold", Operator: "clear"}
	if got := CompileAssignment(a, NewYarnDialect(), defaults); got != "<<set $mc_gold to 0>>" {
		t.Fatalf("got %q", got)
	}
}

func TestCompileAssignmentSetIfUnset(t *testing.T) {
	a := domain.Assignment{Sheet: "mc", Variable: "seen", Operator: "set_if_unset", Value: true}
	got := CompileAssignment(a, NewYarnDialect(), nil)
	want := "<<if $mc_seen == \"\">>\n<<set $mc_seen to true>>\n<<endif>>"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	gotInk := CompileAssignment(a, InkDialect{}, nil)
	wantInk := "{ mc_seen == \"\":\n~ mc_seen = true\n}"
	if gotInk != wantInk {
		t.Fatalf("ink got %q, want %q", gotInk, wantInk)
	}
}

func TestCompileAssignmentVariableRef(t *testing.T) {
	a := domain.Assignment{
		Sheet: "mc", Variable: "gold", Operator: "set",
		Value: "npc.vendor.price", ValueType: "variable_ref",
	}
	if got := CompileAssignment(a, NewYarnDialect(), nil); got != "<<set $mc_gold to $npc_vendor_price>>" {
		t.Fatalf("string ref got %q", got)
	}
	a.Value = map[string]any{"sheet": "npc.vendor", "variable": "price"}
	if got := CompileAssignment(a, InkDialect{}, nil); got != "~ mc_gold = npc_vendor_price" {
		t.Fatalf("map ref got %q", got)
	}
}

func TestLiteralEscaping(t *testing.T) {
	y := NewYarnDialect()
	got := y.Literal("she said \"hi\"\nthen left")
	want := `"she said \"hi\"\nthen left"`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLiteralNumberRendering(t *testing.T) {
	y := NewYarnDialect()
	if got := y.Literal(float64(100)); got != "100" {
		t.Fatalf("integral float = %q", got)
	}
	if got := y.Literal(1.5); got != "1.5" {
		t.Fatalf("fraction = %q", got)
	}
	if got := y.Literal(nil); got != `""` {
		t.Fatalf("nil literal = %q", got)
	}
}
