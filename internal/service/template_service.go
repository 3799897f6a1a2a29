// internal/service/template_service.go
package service

import (
    "regexp"
    "strconv"
    "strings"
)

// TemplateService resolves the bracket placeholder dialect:
//
//   [[ variable_name ]]
//   [[ IF variable_name == 'some string' ]]...[[ ENDIF ]]
//   [[ IF variable_name != 'some string' ]]...[[ ENDIF ]]
//   [[ IF variable_name == 123 ]]...[[ ENDIF ]]
//   [[ IF variable_name != 123 ]]...[[ ENDIF ]]
//   [[ IF variable_name ]]...[[ ENDIF ]]   (truthiness)
//
// String literals may contain escaped single quotes ('O\'Malley'). Blocks
// match non-greedily; the content of a satisfied block is resolved
// recursively, so placeholders and conditionals inside it are fully
// evaluated. Resolution never fails: malformed or unterminated blocks simply
// do not match and pass through verbatim, as do placeholders with no
// matching context key. Callers needing strict validation must pre-validate.
type TemplateService struct{}

func NewTemplateService() *TemplateService {
    return &TemplateService{}
}

var (
    stringCondRe  = regexp.MustCompile(`(?s)\[\[\s*IF\s+([a-zA-Z0-9_]+)\s*(==|!=)\s*'((?:\\'|[^'])*)'\s*\]\](.*?)\[\[\s*ENDIF\s*\]\]`)
    numericCondRe = regexp.MustCompile(`(?s)\[\[\s*IF\s+([a-zA-Z0-9_]+)\s*(==|!=)\s*([0-9]+(?:\.[0-9]+)?)\s*\]\](.*?)\[\[\s*ENDIF\s*\]\]`)
    truthyCondRe  = regexp.MustCompile(`(?s)\[\[\s*IF\s+([a-zA-Z0-9_]+)\s*\]\](.*?)\[\[\s*ENDIF\s*\]\]`)
    placeholderRe = regexp.MustCompile(`\[\[\s*([a-zA-Z0-9_]+)\s*\]\]`)
)

// Resolve replaces placeholders and evaluates conditional blocks in template
// against data. Conditionals run first (string literals, then numeric
// literals, then truthiness), then the remaining simple placeholders.
func (s *TemplateService) Resolve(template string, data map[string]string) string {
    template = s.resolveConditionals(template, data)
    template = s.resolvePlaceholders(template, data)
    return template
}

func (s *TemplateService) resolveConditionals(template string, data map[string]string) string {
    template = replaceAllSubmatchFunc(stringCondRe, template, func(m []string) string {
        key, op, literal, content := m[1], m[2], unescapeQuotes(m[3]), m[4]

        met := false
        if value, ok := data[key]; ok {
            if op == "==" {
                met = value == literal
            } else {
                met = value != literal
            }
        } else if op == "!=" {
            // Key not set, so it differs from any specific string value.
            met = true
        }

        if met {
            return s.Resolve(content, data)
        }
        return ""
    })

    template = replaceAllSubmatchFunc(numericCondRe, template, func(m []string) string {
        key, op, literal, content := m[1], m[2], m[3], m[4]

        met := false
        value, ok := data[key]
        num, numErr := strconv.ParseFloat(value, 64)
        if ok && numErr == nil {
            want, _ := strconv.ParseFloat(literal, 64)
            if op == "==" {
                met = num == want
            } else {
                met = num != want
            }
        } else if op == "!=" {
            // Absent or non-numeric counts as != any number.
            met = true
        }

        if met {
            return s.Resolve(content, data)
        }
        return ""
    })

    template = replaceAllSubmatchFunc(truthyCondRe, template, func(m []string) string {
        key, content := m[1], m[2]
        if truthy(data[key]) {
            return s.Resolve(content, data)
        }
        return ""
    })

    return template
}

func (s *TemplateService) resolvePlaceholders(template string, data map[string]string) string {
    return replaceAllSubmatchFunc(placeholderRe, template, func(m []string) string {
        if value, ok := data[m[1]]; ok {
            return value
        }
        // Leave unmatched placeholders verbatim so authors can spot typos
        // in a rendered preview.
        return m[0]
    })
}

// truthy: absent, empty, zero and boolean false all count as false.
func truthy(value string) bool {
    switch strings.TrimSpace(value) {
    case "", "0", "false":
        return false
    }
    return true
}

func unescapeQuotes(literal string) string {
    literal = strings.ReplaceAll(literal, `\'`, `'`)
    return strings.ReplaceAll(literal, `\\`, `\`)
}

// replaceAllSubmatchFunc is ReplaceAllStringFunc with capture groups: repl
// receives the full match at index 0 followed by the submatches.
func replaceAllSubmatchFunc(re *regexp.Regexp, src string, repl func([]string) string) string {
    matches := re.FindAllStringSubmatchIndex(src, -1)
    if matches == nil {
        return src
    }

    var b strings.Builder
    last := 0
    for _, idx := range matches {
        b.WriteString(src[last:idx[0]])
        groups := make([]string, len(idx)/2)
        for i := range groups {
            if idx[2*i] >= 0 {
                groups[i] = src[idx[2*i]:idx[2*i+1]]
            }
        }
        b.WriteString(repl(groups))
        last = idx[1]
    }
    b.WriteString(src[last:])
    return b.String()
}
