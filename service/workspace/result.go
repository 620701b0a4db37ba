package workspace

import (
	"fmt"
	"strings"
)

type Op string

const (
	OpCreateFolder Op = "create_folder"
	OpCreateFile   Op = "create_file"
	OpListFiles    Op = "list_files"
)

type Status string

const (
	StatusOK            Status = "ok"
	StatusAlreadyExists Status = "already_exists"
	StatusFailed        Status = "failed"
)

type EntryKind string

const (
	KindDirectory EntryKind = "directory"
	KindFile      EntryKind = "file"
)

type Entry struct {
	Name string    `json:"name"`
	Kind EntryKind `json:"kind"`
}

// Result 一次工具调用的结构化结果，String() 为返回给模型的文本
type Result struct {
	Op      Op      `json:"op"`
	Status  Status  `json:"status"`
	Path    string  `json:"path,omitempty"`
	Reason  string  `json:"reason,omitempty"`
	Entries []Entry `json:"entries,omitempty"`
}

func succeeded(op Op, path string) Result {
	return Result{Op: op, Status: StatusOK, Path: path}
}

func alreadyExists(op Op, path string) Result {
	return Result{Op: op, Status: StatusAlreadyExists, Path: path}
}

func failed(op Op, reason string) Result {
	return Result{Op: op, Status: StatusFailed, Reason: reason}
}

// Failed 构造失败结果，供工具参数解析失败等场景使用
func Failed(op Op, reason string) Result {
	return failed(op, reason)
}

func (r Result) String() string {
	switch r.Status {
	case StatusAlreadyExists:
		return fmt.Sprintf("⚠ Folder already exists at:\n%s", r.Path)
	case StatusFailed:
		return fmt.Sprintf("❌ Error %s: %s", r.action(), r.Reason)
	}

	switch r.Op {
	case OpCreateFolder:
		return fmt.Sprintf("✅ Successfully created folder at:\n%s", r.Path)
	case OpCreateFile:
		return fmt.Sprintf("✅ Successfully created file at:\n%s", r.Path)
	case OpListFiles:
		if len(r.Entries) == 0 {
			return "Directory is empty"
		}
		lines := make([]string, 0, len(r.Entries))
		for _, e := range r.Entries {
			icon := "📄"
			if e.Kind == KindDirectory {
				icon = "📁"
			}
			lines = append(lines, icon+" "+e.Name)
		}
		return "Files in directory:\n" + strings.Join(lines, "\n")
	}

	return string(r.Status)
}

func (r Result) action() string {
	switch r.Op {
	case OpCreateFolder:
		return "creating folder"
	case OpCreateFile:
		return "creating file"
	case OpListFiles:
		return "listing files"
	}
	return "running " + string(r.Op)
}
