package condition

import "strings"

// Operator names a comparison between a resolved field value and a rule literal.
type Operator string

const (
	OpEquals              Operator = "EQUALS"
	OpNotEquals           Operator = "NOT_EQUALS"
	OpContains            Operator = "CONTAINS"
	OpNotContains         Operator = "NOT_CONTAINS"
	OpGreaterThan         Operator = "GREATER_THAN"
	OpLessThan            Operator = "LESS_THAN"
	OpGreaterThanOrEquals Operator = "GREATER_THAN_OR_EQUALS"
	OpLessThanOrEquals    Operator = "LESS_THAN_OR_EQUALS"
	OpRegex               Operator = "REGEX"
	OpInList              Operator = "IN_LIST"
	OpNotInList           Operator = "NOT_IN_LIST"
	OpIsNull              Operator = "IS_NULL"
	OpIsNotNull           Operator = "IS_NOT_NULL"
)

var operatorLabels = map[Operator]string{
	OpEquals:              "Equals",
	OpNotEquals:           "Not Equals",
	OpContains:            "Contains",
	OpNotContains:         "Does Not Contain",
	OpGreaterThan:         "Greater Than",
	OpLessThan:            "Less Than",
	OpGreaterThanOrEquals: "Greater Than or Equals",
	OpLessThanOrEquals:    "Less Than or Equals",
	OpRegex:               "Matches Regex",
	OpInList:              "In List",
	OpNotInList:           "Not In List",
	OpIsNull:              "Is Null",
	OpIsNotNull:           "Is Not Null",
}

// Operators returns every operator in declaration order.
func Operators() []Operator {
	return []Operator{
		OpEquals, OpNotEquals, OpContains, OpNotContains,
		OpGreaterThan, OpLessThan, OpGreaterThanOrEquals, OpLessThanOrEquals,
		OpRegex, OpInList, OpNotInList, OpIsNull, OpIsNotNull,
	}
}

// Valid reports whether op is one of the known operators.
func (op Operator) Valid() bool {
	_, ok := operatorLabels[op]
	return ok
}

// Label is the human-readable operator name.
func (op Operator) Label() string {
	if l, ok := operatorLabels[op]; ok {
		return l
	}
	return string(op)
}

// ParseOperator accepts an operator name in any case.
func ParseOperator(s string) (Operator, bool) {
	op := Operator(strings.ToUpper(strings.TrimSpace(s)))
	return op, op.Valid()
}
