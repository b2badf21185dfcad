package sales

import "fmt"

const orderIDPrefix = "ORD"

// orderIDFor renders the human-readable order code. Sequences are padded to
// three digits and widen naturally past 999.
func orderIDFor(year, sequence int) string {
	return fmt.Sprintf("%s-%d-%03d", orderIDPrefix, year, sequence)
}

// orderIDPattern matches all order codes issued in the given year.
func orderIDPattern(year int) string {
	return fmt.Sprintf("%s-%d-%%", orderIDPrefix, year)
}

// orderIDSequenceExpr extracts the numeric suffix of an order code in SQL.
// Lexicographic MAX on the raw column breaks once sequences pass 999, so the
// suffix is compared as an integer.
func orderIDSequenceExpr(year int) string {
	prefixLen := len(fmt.Sprintf("%s-%d-", orderIDPrefix, year))
	return fmt.Sprintf("CAST(SUBSTRING(order_id FROM %d) AS INTEGER)", prefixLen+1)
}
