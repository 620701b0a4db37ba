package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

var ErrOutsideRoot = errors.New("path is outside the workspace root")

// Workspace 工具调用可访问的本地目录，所有路径都相对于 root 解析
type Workspace struct {
	root string
}

// New 规范化工作区根目录；root 为空时使用进程工作目录
func New(root string) (*Workspace, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %v", err)
		}
		root = wd
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path of %s: %v", root, err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root %s: %v", abs, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to stat workspace root %s: %v", resolved, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %s is not a directory", resolved)
	}

	return &Workspace{root: resolved}, nil
}

func (w *Workspace) Root() string {
	return w.root
}

// Resolve 将模型传入的路径解析为工作区内的绝对路径。
// 绝对路径只有位于 root 之内才会被接受；已存在部分中的符号链接会先展开再做边界检查。
func (w *Workspace) Resolve(path string) (string, error) {
	var target string
	if filepath.IsAbs(path) {
		target = filepath.Clean(path)
	} else {
		target = filepath.Join(w.root, path)
	}

	if !w.contains(target) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}

	resolved, err := resolveExisting(target)
	if err != nil {
		return "", err
	}
	if !w.contains(resolved) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}

	return resolved, nil
}

func (w *Workspace) contains(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolveExisting 展开路径中最深的已存在祖先的符号链接，再拼回尚不存在的部分
func resolveExisting(path string) (string, error) {
	existing := path
	var rest []string
	for {
		_, err := os.Lstat(existing)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}

		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}

	return filepath.Join(append([]string{resolved}, rest...)...), nil
}

// CreateFolder 创建目录；目录已存在时不做任何修改
func (w *Workspace) CreateFolder(name string) Result {
	if strings.TrimSpace(name) == "" {
		return failed(OpCreateFolder, "folder name is required")
	}

	path, err := w.Resolve(name)
	if err != nil {
		return failed(OpCreateFolder, err.Error())
	}

	if _, err := os.Stat(path); err == nil {
		return alreadyExists(OpCreateFolder, path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return failed(OpCreateFolder, err.Error())
	}

	if err := os.MkdirAll(path, dirPerm); err != nil {
		return failed(OpCreateFolder, err.Error())
	}

	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		return failed(OpCreateFolder, "folder creation failed (permissions issue?)")
	}

	return succeeded(OpCreateFolder, path)
}

// CreateFile 写入文件，缺失的父目录会被创建，已存在的文件被完整覆盖
func (w *Workspace) CreateFile(path, content string) Result {
	if strings.TrimSpace(path) == "" {
		return failed(OpCreateFile, "file path is required")
	}

	fullPath, err := w.Resolve(path)
	if err != nil {
		return failed(OpCreateFile, err.Error())
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), dirPerm); err != nil {
		return failed(OpCreateFile, err.Error())
	}

	if err := os.WriteFile(fullPath, []byte(content), filePerm); err != nil {
		return failed(OpCreateFile, err.Error())
	}

	if _, err := os.Stat(fullPath); err != nil {
		return failed(OpCreateFile, "file creation failed (permissions issue?)")
	}

	return succeeded(OpCreateFile, fullPath)
}

// ListFiles 列出目录下的直接子项（不递归），按名称排序
func (w *Workspace) ListFiles(path string) Result {
	target, err := w.Resolve(path)
	if err != nil {
		return failed(OpListFiles, err.Error())
	}

	info, err := os.Stat(target)
	if errors.Is(err, os.ErrNotExist) {
		return failed(OpListFiles, "path not found - "+target)
	}
	if err != nil {
		return failed(OpListFiles, err.Error())
	}
	if !info.IsDir() {
		return failed(OpListFiles, "not a directory - "+target)
	}

	dirEntries, err := os.ReadDir(target)
	if err != nil {
		return failed(OpListFiles, err.Error())
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		kind := KindFile
		if isDir(filepath.Join(target, de.Name()), de) {
			kind = KindDirectory
		}
		entries = append(entries, Entry{Name: de.Name(), Kind: kind})
	}

	res := succeeded(OpListFiles, target)
	res.Entries = entries
	return res
}

// 符号链接按其指向的目标判断类型
func isDir(path string, de os.DirEntry) bool {
	if de.Type()&os.ModeSymlink == 0 {
		return de.IsDir()
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
