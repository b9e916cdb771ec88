// Package syscalls names Linux x86-64 system calls for reporting.
package syscalls

// Name returns the name of the Linux x86-64 system call with number n.
func Name(n uint64) (string, bool) {
	if n >= uint64(len(linux64)) {
		return "", false
	}
	return linux64[n], true
}

// Count returns the number of system calls in the table.
func Count() int { return len(linux64) }

// Lookup returns the number of the system call with the given name.
func Lookup(name string) (uint64, bool) {
	for i, s := range linux64 {
		if s == name {
			return uint64(i), true
		}
	}
	return 0, false
}
