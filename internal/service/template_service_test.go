package service

import "testing"

func TestResolvePlaceholders(t *testing.T) {
	svc := NewTemplateService()
	data := map[string]string{
		"first_name": "Alice",
		"last_name":  "Anderson",
		"empty":      "",
	}

	cases := []struct {
		name     string
		template string
		want     string
	}{
		{"simple", "Hello [[first_name]]!", "Hello Alice!"},
		{"whitespace in brackets", "Hello [[  first_name  ]]!", "Hello Alice!"},
		{"multiple", "[[first_name]] [[last_name]]", "Alice Anderson"},
		{"empty value substitutes", "x[[empty]]y", "xy"},
		{"unmatched passes through verbatim", "Hello [[nickname]]!", "Hello [[nickname]]!"},
		{"no placeholders", "plain text", "plain text"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := svc.Resolve(tc.template, data)
			if got != tc.want {
				t.Errorf("Resolve(%q) = %q, want %q", tc.template, got, tc.want)
			}
		})
	}
}

func TestResolveStringConditionals(t *testing.T) {
	svc := NewTemplateService()

	cases := []struct {
		name     string
		template string
		data     map[string]string
		want     string
	}{
		{
			"equals satisfied",
			"[[IF plan == 'gold']]Welcome, gold member.[[ENDIF]]",
			map[string]string{"plan": "gold"},
			"Welcome, gold member.",
		},
		{
			"equals unsatisfied removes block",
			"before [[IF plan == 'gold']]gold content[[ENDIF]] after",
			map[string]string{"plan": "basic"},
			"before  after",
		},
		{
			"not equals satisfied",
			"[[IF plan != 'gold']]upgrade today[[ENDIF]]",
			map[string]string{"plan": "basic"},
			"upgrade today",
		},
		{
			"not equals against absent key is satisfied",
			"[[IF plan != 'gold']]upgrade today[[ENDIF]]",
			map[string]string{},
			"upgrade today",
		},
		{
			"equals against absent key is unsatisfied",
			"[[IF plan == 'gold']]gold content[[ENDIF]]",
			map[string]string{},
			"",
		},
		{
			"escaped quote in literal",
			`[[IF name == 'O\'Malley']]Top of the morning[[ENDIF]]`,
			map[string]string{"name": "O'Malley"},
			"Top of the morning",
		},
		{
			"satisfied block content is resolved",
			"[[IF plan == 'gold']]Hi [[ first_name ]]![[ENDIF]]",
			map[string]string{"plan": "gold", "first_name": "Alice"},
			"Hi Alice!",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := svc.Resolve(tc.template, tc.data)
			if got != tc.want {
				t.Errorf("Resolve(%q) = %q, want %q", tc.template, got, tc.want)
			}
		})
	}
}

func TestResolveNumericConditionals(t *testing.T) {
	svc := NewTemplateService()

	cases := []struct {
		name     string
		template string
		data     map[string]string
		want     string
	}{
		{
			"integer equality",
			"[[IF count == 5]]exactly five[[ENDIF]]",
			map[string]string{"count": "5"},
			"exactly five",
		},
		{
			"numeric comparison ignores formatting",
			"[[IF count == 5]]exactly five[[ENDIF]]",
			map[string]string{"count": "5.0"},
			"exactly five",
		},
		{
			"decimal literal",
			"[[IF balance == 120.50]]matched[[ENDIF]]",
			map[string]string{"balance": "120.5"},
			"matched",
		},
		{
			"not equals",
			"[[IF count != 5]]not five[[ENDIF]]",
			map[string]string{"count": "3"},
			"not five",
		},
		{
			"non-numeric value satisfies not-equals only",
			"[[IF count == 5]]eq[[ENDIF]][[IF count != 5]]ne[[ENDIF]]",
			map[string]string{"count": "lots"},
			"ne",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := svc.Resolve(tc.template, tc.data)
			if got != tc.want {
				t.Errorf("Resolve(%q) = %q, want %q", tc.template, got, tc.want)
			}
		})
	}
}

func TestResolveTruthyConditionals(t *testing.T) {
	svc := NewTemplateService()
	template := "[[IF active]]account active[[ENDIF]]"

	cases := []struct {
		value string
		want  string
	}{
		{"1", "account active"},
		{"yes", "account active"},
		{"0", ""},
		{"false", ""},
		{"", ""},
		{"  ", ""},
	}

	for _, tc := range cases {
		got := svc.Resolve(template, map[string]string{"active": tc.value})
		if got != tc.want {
			t.Errorf("active=%q: got %q, want %q", tc.value, got, tc.want)
		}
	}

	// Absent key behaves like empty.
	if got := svc.Resolve(template, map[string]string{}); got != "" {
		t.Errorf("absent key: got %q, want empty", got)
	}
}

func TestResolveMixedConditionalTypes(t *testing.T) {
	svc := NewTemplateService()

	// The string pass evaluates the inner block first, then the numeric pass
	// evaluates the outer one.
	template := "[[IF count == 5]][[IF plan == 'gold']]gold five[[ENDIF]][[ENDIF]]"
	got := svc.Resolve(template, map[string]string{"count": "5", "plan": "gold"})
	if got != "gold five" {
		t.Errorf("got %q, want %q", got, "gold five")
	}

	got = svc.Resolve(template, map[string]string{"count": "5", "plan": "basic"})
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	svc := NewTemplateService()
	data := map[string]string{"plan": "gold", "first_name": "Alice"}

	template := "Hi [[first_name]], [[IF plan == 'gold']]thanks![[ENDIF]] [[ missing ]]"
	once := svc.Resolve(template, data)
	twice := svc.Resolve(once, data)
	if once != twice {
		t.Errorf("resolution is not a fixed point: %q vs %q", once, twice)
	}
}

func TestResolveLeavesMalformedBlocksVerbatim(t *testing.T) {
	svc := NewTemplateService()

	// Unterminated conditional never matches, so it survives untouched.
	template := "[[IF plan == 'gold']]no endif here"
	if got := svc.Resolve(template, map[string]string{"plan": "gold"}); got != template {
		t.Errorf("got %q, want unchanged %q", got, template)
	}
}
