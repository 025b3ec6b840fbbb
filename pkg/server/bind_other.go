//go:build !unix

package server

func ClassifyBindError(error) BindErrorKind {
	return BindErrorOther
}
