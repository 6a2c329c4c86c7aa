package fsx

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path"
	"strings"
)

// DigestChunkSize is the read size used when hashing files. Files are read in
// fixed-size chunks so memory stays bounded regardless of file size.
const DigestChunkSize = 8 * 1024

const (
	AlgoMD5    = "md5"
	AlgoSHA256 = "sha256"
)

func PathExists(filePath string) (os.FileInfo, bool) {
	s, err := os.Stat(filePath)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return s, false
	}

	return s, true
}

func Copy(src string, dst string, perm os.FileMode) error {
	inputFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("couldn't open source file: %w", err)
	}
	defer CloseFile(inputFile)

	outputFile, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("couldn't open destination file: %w", err)
	}
	defer CloseFile(outputFile)

	if _, err = io.Copy(outputFile, inputFile); err != nil {
		return fmt.Errorf("couldn't copy to destination from source: %w", err)
	}

	if err = outputFile.Sync(); err != nil {
		return fmt.Errorf("failed to flush destination file: %w", err)
	}

	return nil
}

func SplitFilePath(filePath string) (dir, fileNameWithoutExt, ext string) {
	dir, file := path.Split(filePath)
	ext = path.Ext(file)
	fileNameWithoutExt = strings.TrimSuffix(file, ext)
	return dir, fileNameWithoutExt, ext
}

func CombineFilePath(dir string, fileName string, ext string) string {
	return path.Join(dir, fmt.Sprintf("%s%s", fileName, ext))
}

func CloseFile(file *os.File) {
	if file == nil {
		return
	}

	if err := file.Close(); err != nil {
		fmt.Printf("warning: failed to close file: %v\n", err)
	}
}

// FileDigest computes the content digest of a file, reading it in
// DigestChunkSize chunks. Supported algorithms are "md5" (the default when
// algo is empty) and "sha256". The digest is an identity-for-equality check
// used by duplicate detection, not a security boundary.
func FileDigest(filePath string, algo string) (string, error) {
	var h hash.Hash
	switch algo {
	case AlgoMD5, "":
		h = md5.New()
	case AlgoSHA256:
		h = sha256.New()
	default:
		return "", fmt.Errorf("unsupported digest algorithm: %s", algo)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer CloseFile(file)

	buf := make([]byte, DigestChunkSize)
	if _, err := io.CopyBuffer(h, file, buf); err != nil {
		return "", fmt.Errorf("failed to compute digest of the file: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// FileMD5 is a convenience wrapper around FileDigest for the default algorithm.
func FileMD5(filePath string) (string, error) {
	return FileDigest(filePath, AlgoMD5)
}
