package storage

import "context"

// ImageStore es la capacidad de almacenamiento que el núcleo exige a su
// colaborador de objetos: guardar bytes bajo una clave y devolver una URL
// durable y recuperable.
type ImageStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
