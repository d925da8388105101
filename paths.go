package seqio

import (
	"fmt"
	"path/filepath"
	"strings"
)

// completedFileName is the per-task completion marker. Its presence is
// the only authoritative signal that every split's artifacts for the
// task are complete and mutually consistent.
const completedFileName = "COMPLETED"

// TaskDirName returns the directory name for a task's cache, relative
// to a cache root. Provider-prefixed task names use ":" separators,
// which become nested path segments ("t5:my_task" -> "t5/my_task").
func TaskDirName(name string) string {
	return filepath.Join(strings.Split(name, ":")...)
}

// recordsPrefix returns the partition file prefix for a split, without
// the shard suffix.
func recordsPrefix(taskDir, split string) string {
	return filepath.Join(taskDir, split+".records")
}

// partitionPath returns the full path of one record partition file,
// using the "{prefix}-{index}-of-{count}" convention.
func partitionPath(prefix string, index, count int) string {
	return fmt.Sprintf("%s-%05d-of-%05d", prefix, index, count)
}

// infoPath returns the path of a split's info descriptor file.
func infoPath(taskDir, split string) string {
	return filepath.Join(taskDir, fmt.Sprintf("info.%s.json", split))
}

// statsPath returns the path of a split's statistics file.
func statsPath(taskDir, split string) string {
	return filepath.Join(taskDir, fmt.Sprintf("stats.%s.json", split))
}

// completedPath returns the path of a task's completion marker.
func completedPath(taskDir string) string {
	return filepath.Join(taskDir, completedFileName)
}
