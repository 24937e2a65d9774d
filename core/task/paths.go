package task

import (
	"path"
	"strings"

	"github.com/trezcool/edusys/core"
)

// Blob paths hold the ids of the owner and of the file, so that no two files ever share one.

func taskFilePath(taskID string, f File) string {
	return path.Join("tasks", taskID, blobName(f))
}

func submissionFilePath(username, submissionID string, f File) string {
	return path.Join("submissions", username, submissionID, blobName(f))
}

// blobName keeps the extension of the uploaded name so the store can still guess its type.
func blobName(f File) string {
	ext := path.Ext(f.FileName)
	stem := core.Slugify(strings.TrimSuffix(f.FileName, ext))
	if stem == "" {
		return f.ID + strings.ToLower(ext)
	}
	return f.ID + "-" + stem + strings.ToLower(ext)
}

// cleanFileName drops any directory part a client may send along with the name.
func cleanFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == ".." {
		return "file"
	}
	return name
}
