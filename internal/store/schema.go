package store

import (
	"context"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

var (
	// QuestionsColumns holds the columns for the "questions" table.
	QuestionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "question_text", Type: field.TypeString, Size: 2147483647},
		{Name: "question_format", Type: field.TypeString},
		{Name: "topic", Type: field.TypeString, Default: ""},
		{Name: "difficulty_label", Type: field.TypeString, Nullable: true},
		{Name: "partial_scoring", Type: field.TypeBool, Default: false},
		{Name: "source", Type: field.TypeString, Default: "import"},
		{Name: "created_at", Type: field.TypeTime},
	}
	// QuestionsTable holds the schema information for the "questions" table.
	QuestionsTable = &schema.Table{
		Name:       "questions",
		Columns:    QuestionsColumns,
		PrimaryKey: []*schema.Column{QuestionsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "question_topic", Unique: false, Columns: []*schema.Column{QuestionsColumns[3]}},
		},
	}

	// AnswerOptionsColumns holds the columns for the "answer_options" table.
	AnswerOptionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "question_id", Type: field.TypeString},
		{Name: "option_number", Type: field.TypeInt},
		{Name: "option_text", Type: field.TypeString, Size: 2147483647},
		{Name: "is_correct", Type: field.TypeBool, Default: false},
		{Name: "partial_credit", Type: field.TypeFloat64, Default: 1.0},
		{Name: "penalty_value", Type: field.TypeFloat64, Default: 0.0},
	}
	// AnswerOptionsTable holds the schema information for the "answer_options" table.
	AnswerOptionsTable = &schema.Table{
		Name:       "answer_options",
		Columns:    AnswerOptionsColumns,
		PrimaryKey: []*schema.Column{AnswerOptionsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "answeroption_question_id_option_number", Unique: true, Columns: []*schema.Column{AnswerOptionsColumns[1], AnswerOptionsColumns[2]}},
		},
	}

	// ItemParametersColumns holds the columns for the "item_parameters" table.
	ItemParametersColumns = []*schema.Column{
		{Name: "question_id", Type: field.TypeString},
		{Name: "discrimination", Type: field.TypeFloat64},
		{Name: "difficulty", Type: field.TypeFloat64},
		{Name: "guessing", Type: field.TypeFloat64},
		{Name: "source", Type: field.TypeString, Default: "label"},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// ItemParametersTable holds the schema information for the "item_parameters" table.
	ItemParametersTable = &schema.Table{
		Name:       "item_parameters",
		Columns:    ItemParametersColumns,
		PrimaryKey: []*schema.Column{ItemParametersColumns[0]},
	}

	// QuestionStatusColumns holds the columns for the "question_status" table.
	QuestionStatusColumns = []*schema.Column{
		{Name: "user_id", Type: field.TypeString},
		{Name: "question_id", Type: field.TypeString},
		{Name: "attempts", Type: field.TypeInt, Default: 0},
		{Name: "last_correct", Type: field.TypeBool, Default: false},
		{Name: "last_seen_at", Type: field.TypeTime},
	}
	// QuestionStatusTable holds the schema information for the "question_status" table.
	QuestionStatusTable = &schema.Table{
		Name:       "question_status",
		Columns:    QuestionStatusColumns,
		PrimaryKey: []*schema.Column{QuestionStatusColumns[0], QuestionStatusColumns[1]},
		Indexes: []*schema.Index{
			{Name: "questionstatus_user_id_question_id", Unique: true, Columns: []*schema.Column{QuestionStatusColumns[0], QuestionStatusColumns[1]}},
		},
	}

	// TestsColumns holds the columns for the "tests" table.
	TestsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "user_id", Type: field.TypeString},
		{Name: "kind", Type: field.TypeString, Default: "cat"},
		{Name: "topics", Type: field.TypeJSON, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	// TestsTable holds the schema information for the "tests" table.
	TestsTable = &schema.Table{
		Name:       "tests",
		Columns:    TestsColumns,
		PrimaryKey: []*schema.Column{TestsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "test_user_id", Unique: false, Columns: []*schema.Column{TestsColumns[1]}},
		},
	}

	// TestQuestionsColumns holds the columns for the "test_questions" table.
	TestQuestionsColumns = []*schema.Column{
		{Name: "test_id", Type: field.TypeString},
		{Name: "question_id", Type: field.TypeString},
		{Name: "position", Type: field.TypeInt},
	}
	// TestQuestionsTable holds the schema information for the "test_questions" table.
	TestQuestionsTable = &schema.Table{
		Name:       "test_questions",
		Columns:    TestQuestionsColumns,
		PrimaryKey: []*schema.Column{TestQuestionsColumns[0], TestQuestionsColumns[2]},
		Indexes: []*schema.Index{
			{Name: "testquestion_test_id_question_id", Unique: true, Columns: []*schema.Column{TestQuestionsColumns[0], TestQuestionsColumns[1]}},
		},
	}

	// TestResultsColumns holds the columns for the "test_results" table.
	TestResultsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "test_id", Type: field.TypeString},
		{Name: "user_id", Type: field.TypeString},
		{Name: "question_id", Type: field.TypeString},
		{Name: "selected_options", Type: field.TypeJSON},
		{Name: "is_correct", Type: field.TypeBool},
		{Name: "score", Type: field.TypeFloat64},
		{Name: "max_score", Type: field.TypeFloat64},
		{Name: "time_spent_seconds", Type: field.TypeInt, Default: 0},
		{Name: "answered_at", Type: field.TypeTime},
	}
	// TestResultsTable holds the schema information for the "test_results" table.
	TestResultsTable = &schema.Table{
		Name:       "test_results",
		Columns:    TestResultsColumns,
		PrimaryKey: []*schema.Column{TestResultsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "testresult_test_id_question_id", Unique: true, Columns: []*schema.Column{TestResultsColumns[1], TestResultsColumns[3]}},
			{Name: "testresult_user_id", Unique: false, Columns: []*schema.Column{TestResultsColumns[2]}},
		},
	}

	// CatSessionsColumns holds the columns for the "cat_sessions" table.
	CatSessionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "test_id", Type: field.TypeString},
		{Name: "user_id", Type: field.TypeString},
		{Name: "initial_ability", Type: field.TypeFloat64},
		{Name: "current_ability", Type: field.TypeFloat64},
		{Name: "ability_confidence", Type: field.TypeFloat64, Default: 0.0},
		{Name: "passing_standard", Type: field.TypeFloat64},
		{Name: "min_questions", Type: field.TypeInt},
		{Name: "max_questions", Type: field.TypeInt},
		{Name: "questions_answered", Type: field.TypeInt, Default: 0},
		{Name: "status", Type: field.TypeString, Default: "in_progress"},
		{Name: "version", Type: field.TypeInt, Default: 1},
		{Name: "started_at", Type: field.TypeTime},
		{Name: "stopped_at", Type: field.TypeTime, Nullable: true},
	}
	// CatSessionsTable holds the schema information for the "cat_sessions" table.
	CatSessionsTable = &schema.Table{
		Name:       "cat_sessions",
		Columns:    CatSessionsColumns,
		PrimaryKey: []*schema.Column{CatSessionsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "catsession_user_id_status", Unique: false, Columns: []*schema.Column{CatSessionsColumns[2], CatSessionsColumns[10]}},
		},
	}

	// CatSelectionsColumns holds the columns for the "cat_selections" table.
	CatSelectionsColumns = []*schema.Column{
		{Name: "session_id", Type: field.TypeString},
		{Name: "position", Type: field.TypeInt},
		{Name: "question_id", Type: field.TypeString},
		{Name: "information", Type: field.TypeFloat64},
		{Name: "ability_before", Type: field.TypeFloat64},
		{Name: "ability_after", Type: field.TypeFloat64, Nullable: true},
		{Name: "was_correct", Type: field.TypeBool, Nullable: true},
		{Name: "selected_at", Type: field.TypeTime},
		{Name: "answered_at", Type: field.TypeTime, Nullable: true},
	}
	// CatSelectionsTable holds the schema information for the "cat_selections" table.
	CatSelectionsTable = &schema.Table{
		Name:       "cat_selections",
		Columns:    CatSelectionsColumns,
		PrimaryKey: []*schema.Column{CatSelectionsColumns[0], CatSelectionsColumns[1]},
		Indexes: []*schema.Index{
			{Name: "catselection_session_id_question_id", Unique: true, Columns: []*schema.Column{CatSelectionsColumns[0], CatSelectionsColumns[2]}},
		},
	}

	// LlmRequestEventsColumns holds the columns for the "llm_request_events" table.
	LlmRequestEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "input_tokens", Type: field.TypeInt},
		{Name: "output_tokens", Type: field.TypeInt},
		{Name: "latency_ms", Type: field.TypeInt64},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Default: ""},
		{Name: "request_body", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "response_body", Type: field.TypeString, Size: 2147483647, Default: ""},
	}
	// LlmRequestEventsTable holds the schema information for the "llm_request_events" table.
	LlmRequestEventsTable = &schema.Table{
		Name:       "llm_request_events",
		Columns:    LlmRequestEventsColumns,
		PrimaryKey: []*schema.Column{LlmRequestEventsColumns[0]},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		QuestionsTable,
		AnswerOptionsTable,
		ItemParametersTable,
		QuestionStatusTable,
		TestsTable,
		TestQuestionsTable,
		TestResultsTable,
		CatSessionsTable,
		CatSelectionsTable,
		LlmRequestEventsTable,
	}
)

// migrate creates or updates all tables. Referential integrity is enforced
// by the repositories, so no foreign keys are declared.
func migrate(ctx context.Context, drv dialect.Driver) error {
	m, err := schema.NewMigrate(drv, schema.WithForeignKeys(false))
	if err != nil {
		return err
	}
	return m.Create(ctx, Tables...)
}
