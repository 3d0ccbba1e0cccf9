package compiler

import "github.com/bcnelson/firewalld-rule-manager/internal/domain"

// Classify partitions normalized entries into ipv4 / ipv6 / unknown
// buckets. Every entry lands in exactly one bucket; order within a bucket
// follows input order.
func Classify(specs []domain.NetworkSpec) map[domain.Family][]domain.NetworkSpec {
	buckets := make(map[domain.Family][]domain.NetworkSpec)
	for _, spec := range specs {
		buckets[spec.Family] = append(buckets[spec.Family], spec)
	}
	return buckets
}
