// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package slice adds the generic helpers the standard [slices] package
// leaves out. A nil input yields a nil or empty result, never a panic.
package slice

// Map applies transform to every element, keeping order.
func Map[T, U any](input []T, transform func(T) U) []U {
	if input == nil {
		return nil
	}
	result := make([]U, 0, len(input))
	for _, item := range input {
		result = append(result, transform(item))
	}
	return result
}

// Filter keeps the elements for which keep returns true, in order.
func Filter[T any](input []T, keep func(T) bool) []T {
	var result []T
	for _, item := range input {
		if keep(item) {
			result = append(result, item)
		}
	}
	return result
}

// Set returns the distinct elements of input as a membership map.
func Set[T comparable](input []T) map[T]struct{} {
	set := make(map[T]struct{}, len(input))
	for _, item := range input {
		set[item] = struct{}{}
	}
	return set
}
