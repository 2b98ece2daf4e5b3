package util

// Bases lists the nucleotide alphabet accepted in barcodes, in the order
// used when enumerating substitutions.
var Bases = []byte{'A', 'C', 'G', 'T', 'N'}

var (
	complementTable [256]byte
	baseTable       [256]bool

	// iupacTable maps an IUPAC code to the set of bases it matches, as a
	// bitmask over A=1, C=2, G=4, T=8.
	iupacTable = map[byte]byte{
		'A': 1, 'C': 2, 'G': 4, 'T': 8,
		'R': 1 | 4, 'Y': 2 | 8, 'S': 2 | 4, 'W': 1 | 8,
		'K': 4 | 8, 'M': 1 | 2,
		'B': 2 | 4 | 8, 'D': 1 | 4 | 8, 'H': 1 | 2 | 8, 'V': 1 | 2 | 4,
		'N': 1 | 2 | 4 | 8,
	}
	baseBits = map[byte]byte{'A': 1, 'C': 2, 'G': 4, 'T': 8}
)

func init() {
	for i := range complementTable {
		complementTable[i] = byte(i)
	}
	for _, p := range [][2]byte{{'A', 'T'}, {'C', 'G'}, {'N', 'N'}} {
		complementTable[p[0]] = p[1]
		complementTable[p[1]] = p[0]
		complementTable[p[0]+'a'-'A'] = p[1] + 'a' - 'A'
		complementTable[p[1]+'a'-'A'] = p[0] + 'a' - 'A'
	}
	for _, b := range Bases {
		baseTable[b] = true
	}
}

// ReverseComplement returns the reverse complement of seq. Bytes other than
// ACGTN (either case) are kept as is.
func ReverseComplement(seq string) string {
	n := len(seq)
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[n-1-i] = complementTable[seq[i]]
	}
	return string(out)
}

// Reverse returns s with its bytes in reverse order. It is used for quality
// strings that accompany a reverse-complemented sequence.
func Reverse(s string) string {
	n := len(s)
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[n-1-i] = s[i]
	}
	return string(out)
}

// IsBase reports whether b is one of A, C, G, T, N (upper case).
func IsBase(b byte) bool {
	return baseTable[b]
}

// MatchIUPAC reports whether seq matches pattern position by position.
// Pattern positions are IUPAC codes. An N in seq never matches, since it
// carries no base call. Sequences of a different length than the pattern
// never match.
func MatchIUPAC(seq, pattern string) bool {
	if len(seq) != len(pattern) {
		return false
	}
	for i := 0; i < len(seq); i++ {
		bit, ok := baseBits[seq[i]]
		if !ok {
			return false
		}
		if iupacTable[pattern[i]]&bit == 0 {
			return false
		}
	}
	return true
}

// ValidIUPAC reports whether every byte of pattern is an IUPAC code.
func ValidIUPAC(pattern string) bool {
	for i := 0; i < len(pattern); i++ {
		if _, ok := iupacTable[pattern[i]]; !ok {
			return false
		}
	}
	return true
}
