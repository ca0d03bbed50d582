package models

// Stat is the metadata snapshot returned by fstat.
type Stat struct {
	Dev   uint32
	Ino   uint32
	Kind  int16
	Nlink int16
	Major int16
	Minor int16
	Size  int64
}

const (
	KindFile   int16 = 1
	KindDir    int16 = 2
	KindDevice int16 = 3
)
