package source

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"learnedkv/pkg/common"
)

// ReadKeys parses one key per line. Blank lines and lines starting with
// '#' are skipped. A key written with a fraction or exponent is truncated
// toward zero. The keys are returned in file order.
func ReadKeys[K common.Key](r io.Reader) ([]K, error) {
	var keys []K
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		k, err := parseKey[K](text)
		if err != nil {
			return nil, fmt.Errorf("source: line %d: %w", line, err)
		}
		keys = append(keys, k)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func ReadKeysFile[K common.Key](path string) ([]K, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadKeys[K](f)
}

func parseKey[K common.Key](text string) (K, error) {
	var zero K
	signed := ^zero < 0
	bitSize := bitSizeOf[K]()

	if signed {
		v, err := strconv.ParseInt(text, 10, bitSize)
		if err == nil {
			return K(v), nil
		}
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil || math.IsNaN(f) || f < -math.Pow(2, float64(bitSize-1)) || f >= math.Pow(2, float64(bitSize-1)) {
			return zero, err
		}
		return K(int64(f)), nil
	}

	v, err := strconv.ParseUint(text, 10, bitSize)
	if err == nil {
		return K(v), nil
	}
	f, ferr := strconv.ParseFloat(text, 64)
	if ferr != nil || math.IsNaN(f) || f <= -1 || f >= math.Pow(2, float64(bitSize)) {
		return zero, err
	}
	return K(uint64(f)), nil
}

func bitSizeOf[K common.Key]() int {
	var k K
	bits := 0
	for k = 1; k != 0; k <<= 1 {
		bits++
	}
	return bits
}
