package validation

import (
	"fmt"
	"strconv"
	"strings"
)

func ValidateWordSize(w uint) error {
	switch w {
	case 8, 16, 32:
		return nil
	}
	return fmt.Errorf("word size must be 8, 16, or 32 (got %d)", w)
}

func ValidateCodingParams(k, m int, w uint) error {
	if err := ValidateWordSize(w); err != nil {
		return err
	}

	if k < 1 || k > 4096 {
		return fmt.Errorf("data fragment count must be between 1 and 4096 (got %d)", k)
	}

	if m < 1 || m > 1024 {
		return fmt.Errorf("parity fragment count must be between 1 and 1024 (got %d)", m)
	}

	if w < 32 && uint64(k+m) > uint64(1)<<w {
		return fmt.Errorf("k+m=%d does not fit GF(2^%d)", k+m, w)
	}

	return nil
}

func ValidateErasures(erasures []int, k, m int) error {
	seen := make(map[int]bool, len(erasures))
	for _, e := range erasures {
		if e < 0 || e >= k+m {
			return fmt.Errorf("erasure index %d out of range [0,%d)", e, k+m)
		}
		seen[e] = true
	}

	if len(seen) > m {
		return fmt.Errorf("%d erasures exceed the %d recoverable losses", len(seen), m)
	}

	return nil
}

func ValidateFragmentLength(length int, w uint, packetAligned bool) error {
	if length <= 0 {
		return fmt.Errorf("fragment length must be positive (got %d)", length)
	}

	align := int(w / 8)
	if packetAligned {
		align = int(w)
	}
	if length%align != 0 {
		return fmt.Errorf("fragment length %d must be a multiple of %d", length, align)
	}

	return nil
}

// ParseIndexList parses a comma-separated index list such as "0,3,5".
func ParseIndexList(input string) ([]int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}

	parts := strings.Split(input, ",")
	indices := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty index in list %q", input)
		}
		idx, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid index %q: %w", part, err)
		}
		indices = append(indices, idx)
	}

	return indices, nil
}

func SanitizeInput(input string) string {
	input = strings.TrimSpace(input)

	input = strings.ReplaceAll(input, "\r\n", "\n")
	input = strings.ReplaceAll(input, "\r", "\n")

	lines := strings.Split(input, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	return strings.Join(lines, "\n")
}
