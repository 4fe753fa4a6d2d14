// Package facematch provides the embedding math and the accept/reject decision used by
// both the recognition loop and enrollment.
package facematch

// Decision represents what the controller should do with a verification result
type Decision string

const (
	DecisionAccept  Decision = "accept"   // Best match scored above the threshold, open the door
	DecisionReject  Decision = "reject"   // Best match scored at or below the threshold
	DecisionNoMatch Decision = "no_match" // Store is empty, nothing to compare against
)

// Match is the best-scoring valid record for a query embedding
type Match struct {
	ID    int     `json:"id"`
	Slot  int     `json:"slot"`
	Score float64 `json:"score"`
}
