package agent

import "fmt"

// Score computes the run's confidence. Starts at 1.0 and subtracts 0.15
// per repair, 0.2 when a SQL-bearing route produced no rows, and 0.2 when
// a document-bearing route retrieved no fragments, clamped to [0, 1].
func Score(route Route, repairs, rows, fragments int) float64 {
	score := 1.0 - 0.15*float64(repairs)
	if (route == RouteSQL || route == RouteHybrid) && rows == 0 {
		score -= 0.2
	}
	if (route == RouteRAG || route == RouteHybrid) && fragments == 0 {
		score -= 0.2
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Explain summarizes how a run arrived at its answer.
func Explain(route Route, fragments, rows int) string {
	switch route {
	case RouteRAG:
		return fmt.Sprintf("Answered from %d document excerpt(s).", fragments)
	case RouteSQL:
		return fmt.Sprintf("Answered by querying the database (%d row(s) returned).", rows)
	default:
		return fmt.Sprintf("Answered from %d document excerpt(s) and a database query (%d row(s) returned).", fragments, rows)
	}
}
