package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFilePaths(t *testing.T) {
	guide := File{ID: "f1", FileName: "guide.pdf"}
	assert.Equal(t, "tasks/t1/f1-guide.pdf", taskFilePath("t1", guide))
	assert.Equal(t, "submissions/kid/s1/f1-guide.pdf", submissionFilePath("kid", "s1", guide))

	// same name, other file
	assert.NotEqual(t, taskFilePath("t1", guide), taskFilePath("t1", File{ID: "f2", FileName: "guide.pdf"}))
	assert.Equal(t, "tasks/t1/f3-resume-final.pdf", taskFilePath("t1", File{ID: "f3", FileName: "Résumé (final).PDF"}))
	assert.Equal(t, "tasks/t1/f4.txt", taskFilePath("t1", File{ID: "f4", FileName: "???.txt"}))

	assert.Equal(t, "passwd", cleanFileName("../../etc/passwd"))
	assert.Equal(t, "work.docx", cleanFileName(`C:\Users\kid\work.docx`))
	assert.Equal(t, "file", cleanFileName(".."))
}

func TestParseTime(t *testing.T) {
	want := time.Date(2021, 5, 4, 13, 30, 0, 0, time.UTC)

	tests := []struct {
		raw     string
		want    time.Time
		wantErr error
	}{
		{raw: "2021-05-04T13:30:00Z", want: want},
		{raw: "2021-05-04T15:30:00+02:00", want: want},
		{raw: " 2021-05-04T13:30:00 ", want: want},
		{raw: "2021-05-04 13:30", want: want},
		{raw: "2021-05-04T13:30", want: want},
		{raw: "2021-5-4T13:30", want: want},
		{raw: "2021-05-04T15:30:00+0200", want: want},
		{raw: "2021-05-04T15:30+02", want: want},
		{raw: "2021-05-04T10:00:00-03:30", want: want},
		{raw: "2021-05-04T13:30:00 Z", want: want},
		{raw: "2021-05-04T13:30:00.250000Z", want: want.Add(250 * time.Millisecond)},
		{raw: "2021-05-04T13:30:00,5Z", want: want.Add(500 * time.Millisecond)},
		{raw: "2021-05-04", wantErr: ErrInvalidDate},
		{raw: "2021-02-30T13:30", wantErr: ErrInvalidDate},
		{raw: "2021-05-04T24:00", wantErr: ErrInvalidDate},
		{raw: "2021-05-04T13:30+2", wantErr: ErrInvalidDate},
		{raw: "04/05/2021", wantErr: ErrInvalidDate},
		{raw: "", wantErr: ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseTime(tt.raw)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			assert.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestAverage(t *testing.T) {
	assert.Nil(t, average(nil, true))
	assert.Equal(t, 7.5, *average([]int{7, 8}, false))
	assert.Equal(t, 8.33, *average([]int{8, 8, 9}, true))
}
