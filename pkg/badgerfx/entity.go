package badgerfx

// Entity is anything the generic repository can persist. StorageKey is the
// primary key; StorageIndexes are secondary keys whose values resolve back
// to the primary key.
type Entity interface {
	StorageKey() string
	StorageIndexes() []string
	MarshalStorage() ([]byte, error)
	UnmarshalStorage(data []byte) error
}
