package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/db"
	"github.com/mind-engage/checkmark/internal/roster"
	"github.com/mind-engage/checkmark/internal/storage"
)

func f64(v float64) *float64 { return &v }

func sample() (checkmark.Checkmark, []roster.Row) {
	c := checkmark.Checkmark{ID: 4, Name: "Sheet 2", Grade: 4, Examples: []checkmark.Example{
		{ID: 1, Name: "1", Grade: 2, Prefix: "Ex "}, {ID: 2, Name: "2", Grade: 2, Prefix: "Ex "},
	}}
	rows := []roster.Row{
		{
			User:         checkmark.Participant{ID: 10, FirstName: "Ada", LastName: "Lovelace"},
			SubmissionID: new(int64),
			Examples: []checkmark.ExampleState{
				{ID: 1, Known: true, Checked: true},
				{ID: 2, Known: true, Checked: false, Overwritten: true},
			},
			CheckedCount: 1, CheckedPoints: 2, Grade: f64(2),
		},
		{
			User:     checkmark.Participant{ID: 11, FirstName: "Bob", LastName: "Babbage"},
			Examples: []checkmark.ExampleState{{ID: 1}, {ID: 2}},
		},
	}
	return c, rows
}

func TestExampleCell(t *testing.T) {
	assert.Equal(t, "?", ExampleCell(checkmark.ExampleState{}))
	assert.Equal(t, "X", ExampleCell(checkmark.ExampleState{Known: true, Checked: true}))
	assert.Equal(t, "", ExampleCell(checkmark.ExampleState{Known: true}))
	assert.Equal(t, "X (T)", ExampleCell(checkmark.ExampleState{Known: true, Checked: true, Overwritten: true}))
	assert.Equal(t, " (T)", ExampleCell(checkmark.ExampleState{Known: true, Overwritten: true}))
}

func TestBuildColumns(t *testing.T) {
	c, rows := sample()
	o := DefaultOptions()
	o.SumRel = true
	o.Signature = true
	o.SeparateNames = true
	o.Query.Hidden = []string{roster.ColEmail, roster.ColIDNumber, roster.ColGroups, roster.ColFeedback,
		roster.ColTimeMarked, roster.ColTimeSubmitted, roster.ColOverride}
	tab := Build(c, rows, o, time.UTC, time.Unix(0, 0))

	assert.Equal(t, []string{"Last name", "First name", "Ex 1", "Ex 2", "Σ abs", "Σ rel", "Points", "Grade", "Signature"}, tab.Header)
	assert.Equal(t, []string{"Lovelace", "Ada", "X", " (T)", "1/2", "50%", "2/4", "2.00 / 4", ""}, tab.Rows[0])
	assert.Equal(t, []string{"Babbage", "Bob", "?", "?", "0/2", "0%", "0/4", "-", ""}, tab.Rows[1])
	require.Len(t, tab.Info, 4)
	assert.Equal(t, "all", tab.Info[2][1])
	assert.Len(t, tab.Widths, len(tab.Header))
}

func TestWriters(t *testing.T) {
	c, rows := sample()
	o := DefaultOptions()
	o.Query.Hidden = []string{roster.ColEmail}
	tab := Build(c, rows, o, time.UTC, time.Unix(0, 0))

	var buf bytes.Buffer
	o.Format = CSV
	require.NoError(t, Write(&buf, tab, o))
	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, tab.Header, recs[0])
	assert.Equal(t, "Ada Lovelace", recs[1][0])

	buf.Reset()
	o.Format = TXT
	require.NoError(t, Write(&buf, tab, o))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Sheet 2\n"))
	assert.Contains(t, out, "Ada Lovelace")
	assert.Contains(t, out, "X")

	buf.Reset()
	o.Format = XLSX
	o.Orientation = "landscape"
	require.NoError(t, Write(&buf, tab, o))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	got, err := f.GetRows(sheetName)
	require.NoError(t, err)
	// four info lines, a blank line, the header and two rows
	require.Len(t, got, 8)
	assert.Equal(t, "Full name", got[5][0])
	assert.Equal(t, "Bob Babbage", got[7][0])

	buf.Reset()
	o.Format = PDF
	o.TextSize = "large"
	require.NoError(t, Write(&buf, tab, o))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))

	o.Format = "ods"
	assert.ErrorIs(t, Write(io.Discard, tab, o), checkmark.ErrInvalidArgument)
}

func TestPDFManyRowsBreaksPages(t *testing.T) {
	c, rows := sample()
	for i := 0; i < 200; i++ {
		rows = append(rows, rows[1])
	}
	o := DefaultOptions()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Build(c, rows, o, nil, time.Now()), o))
	assert.Greater(t, bytes.Count(buf.Bytes(), []byte("/Type /Page\n")), 1)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "sheet_2-4.pdf", Filename(checkmark.Checkmark{ID: 4, Name: "Sheet 2!"}, PDF))
	assert.Equal(t, "checkmark-1.csv", Filename(checkmark.Checkmark{ID: 1, Name: "::"}, CSV))
}

type countingObserver map[string]int

func (c countingObserver) Exported(format string) { c[format]++ }

func TestExporterArchive(t *testing.T) {
	ctx := context.Background()
	dbx, err := db.OpenMemory(ctx)
	require.NoError(t, err)
	defer dbx.Close()
	for _, s := range []string{
		`INSERT INTO users (id, username, firstname, lastname, created_at) VALUES (10, 'ada', 'Ada', 'Lovelace', 0)`,
		`INSERT INTO courses (id, fullname, created_at) VALUES (1, 'C', 0)`,
		`INSERT INTO enrolments (course_id, user_id, role) VALUES (1, 10, 'student')`,
	} {
		_, err := dbx.Exec(s)
		require.NoError(t, err)
	}
	store := checkmark.NewSQLStore(dbx)
	svc := checkmark.NewService(store)
	c, err := svc.AddInstance(ctx, 1, checkmark.Settings{Name: "Sheet", Grade: 4, ExampleStart: 1, ExampleCount: 2})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, c.ID, 10, []int64{c.Examples[1].ID})
	require.NoError(t, err)

	blobs, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	obs := countingObserver{}
	e := New(roster.New(store), WithBlobStore(blobs), WithObserver(obs))

	o := DefaultOptions()
	o.Format = CSV
	key, err := e.Archive(ctx, c, o)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "exports/"))
	assert.True(t, strings.HasSuffix(key, ".csv"))

	rc, err := blobs.Get(ctx, key)
	require.NoError(t, err)
	recs, err := csv.NewReader(rc).ReadAll()
	rc.Close()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Ada Lovelace", recs[1][0])
	assert.Contains(t, recs[1], "X")
	assert.Equal(t, 1, obs["csv"])

	o.Format = "doc"
	_, err = e.Archive(ctx, c, o)
	assert.ErrorIs(t, err, checkmark.ErrInvalidArgument)
}
