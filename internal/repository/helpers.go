package repository

import "github.com/lib/pq"

func normalisePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}

func stringArray(values []string) interface{} {
	return pq.Array(values)
}
