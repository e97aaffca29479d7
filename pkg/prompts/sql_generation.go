// Package prompts builds the LLM prompts used for SQL generation.
package prompts

import (
	"fmt"
	"strings"

	"github.com/asklantern/lantern-engine/pkg/models"
)

// BuildSQLGenerationSystemMessage creates the system message for SQL
// generation against one source dialect.
func BuildSQLGenerationSystemMessage(sourceType string) string {
	var msg strings.Builder

	msg.WriteString("You are an expert data analyst who writes SQL for the ")
	msg.WriteString(dialectName(sourceType))
	msg.WriteString(" dialect.\n\n")
	msg.WriteString("Rules:\n")
	msg.WriteString("- Generate exactly one read-only SELECT statement.\n")
	msg.WriteString("- Use only the tables and columns listed in the schema.\n")
	msg.WriteString("- Never invent columns. If the question cannot be answered from the schema, say so in a SQL comment.\n")
	msg.WriteString("- Return only the SQL statement, no explanation and no markdown fences.\n")
	return msg.String()
}

// BuildSQLGenerationPrompt renders the schema configuration and the user's
// question into the generation prompt. Table and field annotations are the
// whole point of the configuration lifecycle: they ride along with every
// structural fact so the model can map business language onto columns.
func BuildSQLGenerationPrompt(doc *models.SchemaConfig, question string) string {
	var prompt strings.Builder

	prompt.WriteString("# Database Schema\n\n")
	for _, tableName := range doc.TableNames() {
		table := doc.Tables[tableName]
		prompt.WriteString(fmt.Sprintf("## %s\n", tableName))
		if table.Description != "" {
			prompt.WriteString(table.Description + "\n")
		}
		prompt.WriteString("Columns:\n")
		for _, fieldName := range doc.FieldNames(tableName) {
			field := table.Fields[fieldName]
			flags := ""
			if field.PrimaryKey {
				flags += " [PK]"
			}
			if field.Nullable {
				flags += " (nullable)"
			}
			line := fmt.Sprintf("- %s (%s)%s", fieldName, field.Type, flags)
			if field.Description != "" {
				line += ": " + field.Description
			}
			prompt.WriteString(line + "\n")
		}
		prompt.WriteString("\n")
	}

	if doc.BusinessContext.Description != "" || len(doc.BusinessContext.KeyConcepts) > 0 {
		prompt.WriteString("# Business Context\n\n")
		if doc.BusinessContext.Description != "" {
			prompt.WriteString(doc.BusinessContext.Description + "\n")
		}
		for _, concept := range doc.BusinessContext.KeyConcepts {
			prompt.WriteString("- " + concept + "\n")
		}
		prompt.WriteString("\n")
	}

	if len(doc.QueryGuidelines.OptimizationRules) > 0 {
		prompt.WriteString("# Query Guidelines\n\n")
		for _, rule := range doc.QueryGuidelines.OptimizationRules {
			prompt.WriteString("- " + rule + "\n")
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("# Question\n\n")
	prompt.WriteString(question)
	prompt.WriteString("\n")
	return prompt.String()
}

func dialectName(sourceType string) string {
	switch sourceType {
	case "snowflake":
		return "Snowflake"
	case "postgres":
		return "PostgreSQL"
	case "sqlserver":
		return "SQL Server (T-SQL)"
	default:
		return sourceType
	}
}
