// Package sqlguard is the trust boundary between SQL text and the
// warehouse. Every statement, whether hand-written or produced by the
// text-to-SQL translator, passes Validate before execution; there is no
// bypass path.
package sqlguard

import "fmt"

// Stable rejection reason codes, used as log fields and metric labels.
const (
	ReasonMalformed          = "malformed_statement"
	ReasonEmptyStatement     = "empty_statement"
	ReasonMultipleStatements = "multiple_statements"
	ReasonNotReadOnly        = "not_read_only"
	ReasonForbiddenKeyword   = "forbidden_keyword"
	ReasonTableNotAllowed    = "table_not_allowed"
	ReasonParameterMismatch  = "parameter_mismatch"
	ReasonUnboundLiteral     = "unbound_literal"
)

// Decision is the gate verdict. Reason is a stable code; Detail carries
// the human-readable specifics for logging.
type Decision struct {
	Admitted bool
	Reason   string
	Detail   string
}

func admit() Decision {
	return Decision{Admitted: true}
}

func reject(reason, format string, args ...any) Decision {
	return Decision{Admitted: false, Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// allowedTables is the fixed warehouse surface. It tracks the four
// read-only tables and nothing else.
var allowedTables = map[string]bool{
	"users":         true,
	"subscriptions": true,
	"payments":      true,
	"sessions":      true,
}

// AllowedTables returns the table whitelist in a fixed order.
func AllowedTables() []string {
	return []string{"users", "subscriptions", "payments", "sessions"}
}

var forbiddenKeywords = map[string]bool{
	"insert": true, "update": true, "delete": true, "drop": true,
	"truncate": true, "alter": true, "create": true, "grant": true,
	"revoke": true, "merge": true, "copy": true, "call": true,
	"exec": true, "execute": true, "vacuum": true, "attach": true,
	"detach": true, "pragma": true, "install": true, "load": true,
	"set": true, "reset": true,
}

// clauseKeywords terminate a table reference; a word from this set after a
// table name is a clause, not an alias.
var clauseKeywords = map[string]bool{
	"where": true, "group": true, "order": true, "limit": true,
	"offset": true, "on": true, "join": true, "left": true, "right": true,
	"inner": true, "outer": true, "cross": true, "full": true,
	"natural": true, "using": true, "union": true, "intersect": true,
	"except": true, "having": true, "window": true, "qualify": true,
	"and": true, "or": true, "as": true,
}

// funcFromWords are functions whose call syntax embeds a FROM keyword,
// e.g. EXTRACT(YEAR FROM x). Those FROMs introduce no table reference.
var funcFromWords = map[string]bool{
	"extract": true, "substring": true, "trim": true,
	"position": true, "overlay": true,
}

// Validate admits a statement only if it is a single read-only SELECT
// against whitelisted tables with every dynamic value bound as a $n
// parameter. It is pure: no side effects, safe for concurrent use.
func Validate(sqlText string, params []any) Decision {
	tokens, err := scanTokens(sqlText)
	if err != nil {
		return reject(ReasonMalformed, "cannot scan statement: %v", err)
	}
	if len(tokens) == 0 {
		return reject(ReasonEmptyStatement, "statement is empty")
	}

	// A trailing semicolon is tolerated; anything after one is a second
	// statement.
	for i, tok := range tokens {
		if tok.typ == tokenSemicolon {
			if i != len(tokens)-1 {
				return reject(ReasonMultipleStatements, "statement separator at token %d", i)
			}
			tokens = tokens[:i]
		}
	}
	if len(tokens) == 0 {
		return reject(ReasonEmptyStatement, "statement is empty")
	}

	first := tokens[0]
	if first.typ != tokenWord || (first.val != "select" && first.val != "with") {
		return reject(ReasonNotReadOnly, "statement must start with SELECT or WITH, got %q", first.val)
	}

	for _, tok := range tokens {
		if tok.typ == tokenWord && forbiddenKeywords[tok.val] {
			return reject(ReasonForbiddenKeyword, "forbidden keyword %q", tok.val)
		}
	}

	cteNames := collectCTENames(tokens)
	for _, name := range extractTableRefs(tokens) {
		if !allowedTables[name] && !cteNames[name] {
			return reject(ReasonTableNotAllowed, "table %q is not in the warehouse whitelist", name)
		}
	}

	if d := checkPlaceholders(tokens, len(params)); !d.Admitted {
		return d
	}
	if d := checkUnboundLiterals(tokens); !d.Admitted {
		return d
	}
	return admit()
}

// collectCTENames gathers the aliases introduced by a leading WITH clause
// so that references to them are not mistaken for warehouse tables. The
// CTE bodies themselves are still table-checked by the main scan.
func collectCTENames(tokens []token) map[string]bool {
	names := map[string]bool{}
	if len(tokens) == 0 || tokens[0].typ != tokenWord || tokens[0].val != "with" {
		return names
	}
	i := 1
	if i < len(tokens) && tokens[i].typ == tokenWord && tokens[i].val == "recursive" {
		i++
	}
	for i < len(tokens) {
		if tokens[i].typ != tokenWord {
			return names
		}
		names[tokens[i].val] = true
		i++
		if i < len(tokens) && tokens[i].typ == tokenLParen {
			i = skipParens(tokens, i)
		}
		if i >= len(tokens) || tokens[i].typ != tokenWord || tokens[i].val != "as" {
			return names
		}
		i++
		if i >= len(tokens) || tokens[i].typ != tokenLParen {
			return names
		}
		i = skipParens(tokens, i)
		if i < len(tokens) && tokens[i].typ == tokenComma {
			i++
			continue
		}
		return names
	}
	return names
}

// skipParens advances past the parenthesized group opening at index i and
// returns the index after the matching close.
func skipParens(tokens []token, i int) int {
	depth := 0
	for ; i < len(tokens); i++ {
		switch tokens[i].typ {
		case tokenLParen:
			depth++
		case tokenRParen:
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return i
}

// extractTableRefs returns every table name referenced after FROM or JOIN.
// Qualified names resolve to their last segment; subqueries contribute
// through their own inner FROM clauses.
func extractTableRefs(tokens []token) []string {
	var tables []string

	// Paren depths at which a function-embedded FROM is active.
	depth := 0
	var funcFromDepths []int

	i := 0
	for i < len(tokens) {
		tok := tokens[i]
		switch tok.typ {
		case tokenLParen:
			if i > 0 && tokens[i-1].typ == tokenWord && funcFromWords[tokens[i-1].val] {
				funcFromDepths = append(funcFromDepths, depth+1)
			}
			depth++
			i++
			continue
		case tokenRParen:
			if n := len(funcFromDepths); n > 0 && funcFromDepths[n-1] == depth {
				funcFromDepths = funcFromDepths[:n-1]
			}
			depth--
			i++
			continue
		}

		if tok.typ == tokenWord && (tok.val == "from" || tok.val == "join") {
			if n := len(funcFromDepths); n > 0 && funcFromDepths[n-1] <= depth {
				i++
				continue
			}
			i++
			i = consumeTableRefList(tokens, i, tok.val == "from", &tables)
			continue
		}
		i++
	}
	return tables
}

// consumeTableRefList reads one table reference, or a comma-separated list
// after FROM, appending resolved names. It stops at subqueries and clause
// keywords.
func consumeTableRefList(tokens []token, i int, allowList bool, tables *[]string) int {
	for {
		if i >= len(tokens) || tokens[i].typ != tokenWord {
			// Subquery or end of clause; the inner SELECT is scanned by
			// the caller's linear pass.
			return i
		}

		name := tokens[i].val
		i++
		for i+1 < len(tokens) && tokens[i].typ == tokenOther && tokens[i].val == "." && tokens[i+1].typ == tokenWord {
			name = tokens[i+1].val
			i += 2
		}
		*tables = append(*tables, name)

		// Optional alias.
		if i < len(tokens) && tokens[i].typ == tokenWord && tokens[i].val == "as" {
			i++
		}
		if i < len(tokens) && tokens[i].typ == tokenWord && !clauseKeywords[tokens[i].val] {
			i++
		}

		if allowList && i < len(tokens) && tokens[i].typ == tokenComma {
			i++
			continue
		}
		return i
	}
}

// checkPlaceholders requires $1..$n to be densely numbered and exactly
// covered by the bound parameter list.
func checkPlaceholders(tokens []token, paramCount int) Decision {
	seen := map[int]bool{}
	max := 0
	for _, tok := range tokens {
		if tok.typ == tokenOther && tok.val == "?" {
			return reject(ReasonParameterMismatch, "positional ? placeholders are not supported, use $n")
		}
		if tok.typ != tokenPlaceholder {
			continue
		}
		seen[tok.num] = true
		if tok.num > max {
			max = tok.num
		}
	}
	for n := 1; n <= max; n++ {
		if !seen[n] {
			return reject(ReasonParameterMismatch, "placeholder $%d is missing from a dense $1..$%d sequence", n, max)
		}
	}
	if max != paramCount {
		return reject(ReasonParameterMismatch, "statement uses %d placeholders but %d parameters are bound", max, paramCount)
	}
	return admit()
}

// checkUnboundLiterals rejects literals sitting in dynamic-value position:
// directly compared to a column, inside an IN list, or in a BETWEEN range.
// Literals acting as structural constants (SELECT 'label', COALESCE(x, 0),
// LIMIT 100, INTERVAL '30 days') are allowed.
func checkUnboundLiterals(tokens []token) Decision {
	depth := 0
	var inListDepths []int
	betweenSlots := 0

	for i, tok := range tokens {
		switch tok.typ {
		case tokenLParen:
			if i > 0 && tokens[i-1].typ == tokenWord && tokens[i-1].val == "in" {
				inListDepths = append(inListDepths, depth+1)
			}
			depth++
			continue
		case tokenRParen:
			if n := len(inListDepths); n > 0 && inListDepths[n-1] == depth {
				inListDepths = inListDepths[:n-1]
			}
			depth--
			continue
		case tokenWord:
			if tok.val == "between" {
				betweenSlots = 2
			} else if betweenSlots > 0 && tok.val != "and" {
				betweenSlots--
			}
			continue
		case tokenPlaceholder:
			if betweenSlots > 0 {
				betweenSlots--
			}
			continue
		case tokenNumber, tokenString:
			if betweenSlots > 0 {
				return reject(ReasonUnboundLiteral, "literal %q in BETWEEN range must be a bound parameter", tok.val)
			}
			if inComparisonPosition(tokens, i, inListDepths, depth) && !isAllowedConstant(tokens, i) {
				return reject(ReasonUnboundLiteral, "literal %q must be a bound parameter", tok.val)
			}
		}
	}
	return admit()
}

func inComparisonPosition(tokens []token, i int, inListDepths []int, depth int) bool {
	if n := len(inListDepths); n > 0 && inListDepths[n-1] == depth {
		prev := tokens[i-1]
		if prev.typ == tokenLParen || prev.typ == tokenComma {
			return true
		}
	}
	if i == 0 {
		return false
	}
	prev := tokens[i-1]
	if prev.typ == tokenOperator {
		return true
	}
	if prev.typ == tokenWord && (prev.val == "like" || prev.val == "ilike") {
		return true
	}
	return false
}

// isAllowedConstant covers the small fixed set of literals the gate
// tolerates in comparison position: the boolean-ish numbers 0 and 1.
func isAllowedConstant(tokens []token, i int) bool {
	tok := tokens[i]
	if tok.typ == tokenNumber && (tok.val == "0" || tok.val == "1") {
		return true
	}
	if tok.typ == tokenString && i > 0 && tokens[i-1].typ == tokenWord && tokens[i-1].val == "interval" {
		return true
	}
	return false
}
