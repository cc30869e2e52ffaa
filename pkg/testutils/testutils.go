package testutils

import (
	. "github.com/onsi/gomega"
)

// Must fails the running spec if err is set and yields the value
// otherwise. It is meant to wrap two-result calls inside test
// expressions.
func Must[T any](o T, err error) T {
	ExpectWithOffset(1, err).ToNot(HaveOccurred())
	return o
}

func Must2[A, B any](a A, b B, err error) (A, B) {
	ExpectWithOffset(1, err).ToNot(HaveOccurred())
	return a, b
}

func MustBeSuccessful(err error) {
	ExpectWithOffset(1, err).ToNot(HaveOccurred())
}

func MustFailWithMessage(err error, msg string) {
	ExpectWithOffset(1, err).To(HaveOccurred())
	ExpectWithOffset(1, err.Error()).To(Equal(msg))
}
