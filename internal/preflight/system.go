package preflight

import (
	"fmt"
	"syscall"
)

// minDiskSpaceBytes is required free space in the data directory. The
// vector store and sqlite metadata both grow under it.
const minDiskSpaceBytes = 100 * 1024 * 1024

// minFileDescriptors covers the watcher, sqlite, and open extractors.
const minFileDescriptors = 1024

// CheckDiskSpace verifies free space on the data directory volume.
func (c *Checker) CheckDiskSpace() Result {
	result := Result{Name: "disk_space", Required: true}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(c.cfg.Paths.DataDir, &stat); err != nil {
		result.Status = StatusWarn
		result.Required = false
		result.Message = fmt.Sprintf("cannot stat %s: %v", c.cfg.Paths.DataDir, err)
		return result
	}

	free := stat.Bavail * uint64(stat.Bsize)
	result.Message = fmt.Sprintf("%s free (minimum 100 MB)", formatBytes(free))
	if free < minDiskSpaceBytes {
		result.Status = StatusFail
	} else {
		result.Status = StatusPass
	}
	return result
}

// CheckFileDescriptors verifies the soft open-file limit.
func (c *Checker) CheckFileDescriptors() Result {
	result := Result{Name: "file_descriptors", Required: true}

	var limit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		result.Status = StatusWarn
		result.Required = false
		result.Message = fmt.Sprintf("cannot read rlimit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum %d)", limit.Cur, minFileDescriptors)
	if limit.Cur < minFileDescriptors {
		result.Status = StatusFail
		result.Detail = "raise the limit with ulimit -n 4096"
	} else {
		result.Status = StatusPass
	}
	return result
}
