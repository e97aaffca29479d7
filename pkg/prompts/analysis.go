package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
)

// analysisRowCap bounds how many result rows are fed back to the model.
const analysisRowCap = 25

// AnalysisSystemMessage instructs the model to narrate query results.
const AnalysisSystemMessage = "You are a data analyst. Given a question, the SQL that answered it " +
	"and the resulting rows, write a short plain-language answer to the question. " +
	"State numbers from the rows exactly. Do not speculate beyond the data shown. " +
	"Answer in at most three sentences, no markdown."

// BuildAnalysisPrompt renders the question, generated SQL and a bounded
// sample of the result rows for the narrative pass.
func BuildAnalysisPrompt(question, sqlQuery string, columns []string, rows []map[string]any) string {
	var prompt strings.Builder

	prompt.WriteString("# Question\n\n")
	prompt.WriteString(question + "\n\n")

	prompt.WriteString("# SQL\n\n")
	prompt.WriteString(sqlQuery + "\n\n")

	prompt.WriteString("# Results\n\n")
	prompt.WriteString("Columns: " + strings.Join(columns, ", ") + "\n")
	shown := rows
	if len(shown) > analysisRowCap {
		shown = shown[:analysisRowCap]
	}
	for _, row := range shown {
		// JSON keeps row values unambiguous for the model.
		encoded, err := json.Marshal(row)
		if err != nil {
			continue
		}
		prompt.WriteString(string(encoded) + "\n")
	}
	if len(rows) > len(shown) {
		prompt.WriteString(fmt.Sprintf("(%d more rows not shown)\n", len(rows)-len(shown)))
	}
	prompt.WriteString(fmt.Sprintf("\nTotal rows: %d\n", len(rows)))
	return prompt.String()
}
