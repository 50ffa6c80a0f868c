package main

var LogKey = struct {
	Module   string
	Port     string
	Category string
}{
	Module:   "module",
	Port:     "port",
	Category: "category",
}

func ptr[T any](v T) *T {
	return &v
}
