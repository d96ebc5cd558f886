package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/clinote/internal/ops"
)

var kindEnum = []string{"admission", "evolution"}

func kindParam() mcp.ToolOption {
	return mcp.WithString("kind",
		mcp.Description("Record kind; defaults to the active record"),
		mcp.Enum(kindEnum...),
	)
}

var draftGetToolDef = mcp.NewTool("note_draft_get",
	mcp.WithDescription("Return the live admission or evolution note with its lint result and Glasgow total."),
	kindParam(),
	mcp.WithBoolean("activate", mcp.Description("Make this kind the active record")),
)

var draftUpdateToolDef = mcp.NewTool("note_draft_update",
	mcp.WithDescription("Edit the live note. Fields are merged like an assistant result: blank values never erase. "+
		"With replace=true the fields become the whole record."),
	kindParam(),
	mcp.WithObject("fields", mcp.Required(), mcp.Description("Record fields using the note's JSON names (nombre, signos.ta, g.o, ...)")),
	mcp.WithBoolean("replace", mcp.Description("Replace the record instead of merging")),
)

var draftClearToolDef = mcp.NewTool("note_draft_clear",
	mcp.WithDescription("Reset a note to its defaults and delete its saved draft. The clinician signature is kept."),
	kindParam(),
	mcp.WithDestructiveHintAnnotation(true),
)

var listEditToolDef = mcp.NewTool("note_list_edit",
	mcp.WithDescription("Add, remove or toggle one item of a list field (antecedentes, diagnostico, diagnosticosIngreso, diagnosticosActivos)."),
	kindParam(),
	mcp.WithString("field", mcp.Required(), mcp.Description("List field name")),
	mcp.WithString("action", mcp.Description("Default: add"), mcp.Enum(ops.ListAdd, ops.ListRemove, ops.ListToggle)),
	mcp.WithString("value", mcp.Required(), mcp.Description("Item text, or the diagnosis label when code is set")),
	mcp.WithString("code", mcp.Description("Diagnosis code, rendered as \"code - label\"")),
)

var examTemplateToolDef = mcp.NewTool("note_exam_template",
	mcp.WithDescription("Append a normal physical-exam paragraph (e.g. \"Abdomen\") to the note's exam section."),
	kindParam(),
	mcp.WithString("template", mcp.Required(), mcp.Description("Template name")),
)

var birthDateToolDef = mcp.NewTool("note_birth_date",
	mcp.WithDescription("Set the admission birth date; the age is derived."),
	mcp.WithNumber("year", mcp.Required()),
	mcp.WithNumber("month", mcp.Required()),
	mcp.WithNumber("day", mcp.Required()),
)

var parseToolDef = mcp.NewTool("note_parse",
	mcp.WithDescription("Extract note fields from free clinical text with the assistant and merge them onto the live note."),
	kindParam(),
	mcp.WithString("text", mcp.Required(), mcp.Description("Free clinical narrative")),
)

var analyzeToolDef = mcp.NewTool("note_analyze",
	mcp.WithDescription("Ask the assistant to critique the live note: observations, improved narrative, suggested diagnoses and plan."),
	kindParam(),
	mcp.WithBoolean("apply", mcp.Description("Apply the suggestions and commit the note to history")),
)

var applyAnalysisToolDef = mcp.NewTool("note_apply_analysis",
	mcp.WithDescription("Merge a critique into the live note and commit it to history. Without analysis, applies the last note_analyze result."),
	kindParam(),
	mcp.WithObject("analysis", mcp.Description("Critique object as returned by note_analyze")),
)

var exportToolDef = mcp.NewTool("note_export",
	mcp.WithDescription("Commit the live note to history and render it. Requires the patient name."),
	kindParam(),
	mcp.WithString("format", mcp.Description("Default: document"),
		mcp.Enum(ops.FormatDocument, ops.FormatHTML, ops.FormatWord, ops.FormatMessage)),
	mcp.WithString("path", mcp.Description("Write to this file instead of returning the content")),
)

var payloadEncodeToolDef = mcp.NewTool("note_payload_encode",
	mcp.WithDescription("Encode the live admission note as the compact JSON transfer payload shown as a QR code. Does not commit."),
	mcp.WithString("path", mcp.Description("Write to this .json file instead of returning the payload")),
)

var payloadIngestToolDef = mcp.NewTool("note_payload_ingest",
	mcp.WithDescription("Merge a scanned transfer payload onto the live admission note. Payloads that are not JSON objects are ignored."),
	mcp.WithString("payload", mcp.Description("Decoded QR text")),
	mcp.WithString("path", mcp.Description("File holding the payload")),
)

var statusToolDef = mcp.NewTool("note_status",
	mcp.WithDescription("Report the active note, history size, persistence health and assistant availability."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var historyListToolDef = mcp.NewTool("history_list",
	mcp.WithDescription("List committed notes, newest first."),
	mcp.WithString("kind", mcp.Description("Filter by kind"), mcp.Enum(kindEnum...)),
	mcp.WithString("query", mcp.Description("Match patient name, folio or diagnosis")),
	mcp.WithNumber("limit", mcp.Description("Default 30, max 100")),
	mcp.WithNumber("offset"),
	mcp.WithReadOnlyHintAnnotation(true),
)

var historyGetToolDef = mcp.NewTool("history_get",
	mcp.WithDescription("Return one committed note with its full record."),
	mcp.WithNumber("id", mcp.Required()),
	mcp.WithReadOnlyHintAnnotation(true),
)

var historyLoadToolDef = mcp.NewTool("history_load",
	mcp.WithDescription("Copy a committed note back into the live note of its kind and make it active."),
	mcp.WithNumber("id", mcp.Required()),
)

var historyDeleteToolDef = mcp.NewTool("history_delete",
	mcp.WithDescription("Delete one committed note."),
	mcp.WithNumber("id", mcp.Required()),
	mcp.WithDestructiveHintAnnotation(true),
)

var historyClearToolDef = mcp.NewTool("history_clear",
	mcp.WithDescription("Delete every committed note."),
	mcp.WithDestructiveHintAnnotation(true),
)
