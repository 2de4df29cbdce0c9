package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/Davincible/erasure/internal/validation"
	"github.com/Davincible/erasure/pkg/codec"
	"github.com/Davincible/erasure/pkg/coding"
	"github.com/Davincible/erasure/pkg/config"
	"github.com/Davincible/erasure/pkg/galois"
)

// readPassphrase reads a passphrase from the terminal
func readPassphrase(prompt string) (string, error) {
	fmt.Print(prompt)

	if term.IsTerminal(int(syscall.Stdin)) {
		passBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(passBytes), nil
	}

	// Fallback for non-terminal
	reader := bufio.NewReader(os.Stdin)
	pass, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(pass), nil
}

// buildCodec turns validated coding settings into a ready codec
func buildCodec(settings config.CodingSettings) (*codec.Codec, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if err := validation.ValidateCodingParams(settings.DataFragments,
		settings.ParityFragments, settings.WordSize); err != nil {
		return nil, err
	}

	f, err := galois.NewField(settings.WordSize)
	if err != nil {
		return nil, err
	}

	cm, err := coding.Build(f, coding.Method(settings.Method),
		settings.DataFragments, settings.ParityFragments)
	if err != nil {
		return nil, fmt.Errorf("failed to build coding matrix: %w", err)
	}

	return codec.New(cm, codec.Technique(settings.Technique))
}

// splitIntoFragments zero-pads data and slices it into k equal fragments
// whose length is a multiple of align
func splitIntoFragments(data []byte, k, align int) [][]byte {
	fragLen := (len(data) + k - 1) / k
	if fragLen == 0 {
		fragLen = align
	}
	if rem := fragLen % align; rem != 0 {
		fragLen += align - rem
	}

	padded := make([]byte, k*fragLen)
	copy(padded, data)

	fragments := make([][]byte, k)
	for i := range fragments {
		fragments[i] = padded[i*fragLen : (i+1)*fragLen]
	}
	return fragments
}

// joinFragments reassembles the original payload from data fragments
func joinFragments(fragments [][]byte, origSize int64) []byte {
	joined := make([]byte, 0, origSize)
	for _, frag := range fragments {
		joined = append(joined, frag...)
	}
	if int64(len(joined)) > origSize {
		joined = joined[:origSize]
	}
	return joined
}

// readInput reads the payload from a file, or stdin when path is "-"
func readInput(path string) ([]byte, error) {
	if path == "-" {
		reader := bufio.NewReader(os.Stdin)
		var data []byte
		buf := make([]byte, 32*1024)
		for {
			n, err := reader.Read(buf)
			data = append(data, buf[:n]...)
			if err != nil {
				break
			}
		}
		return data, nil
	}
	return os.ReadFile(path)
}

// expandHome resolves a leading ~ in store paths
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + path[1:]
		}
	}
	return path
}

func printSuccess(format string, args ...interface{}) {
	green := color.New(color.FgGreen, color.Bold)
	green.Printf("✓ "+format+"\n", args...)
}

func printWarning(format string, args ...interface{}) {
	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Printf("⚠ "+format+"\n", args...)
}
