package record

import "fmt"

// Dynamic is one block of a chain that stores a variable length payload: long strings, arrays, label sets that
// do not fit inline and token names.
type Dynamic struct {
	ID      int64
	InUse   bool
	Corrupt bool
	Length  int
	Next    int64
	Data    []byte
}

func NewDynamic(id int64) Dynamic {
	return Dynamic{
		ID:   id,
		Next: NullReference,
	}
}

func (s Dynamic) RecordID() int64 {
	return s.ID
}

func (s Dynamic) IsInUse() bool {
	return s.InUse
}

func (s Dynamic) IsCorrupt() bool {
	return s.Corrupt
}

func (s Dynamic) String() string {
	return fmt.Sprintf("DynamicRecord[%d,used=%t,length=%d,next=%s]", s.ID, s.InUse, s.Length, formatReference(s.Next))
}

type Token struct {
	ID       int64
	InUse    bool
	Corrupt  bool
	Internal bool
	NameID   int64
}

func NewToken(id int64) Token {
	return Token{
		ID:     id,
		NameID: NullReference,
	}
}

func (s Token) RecordID() int64 {
	return s.ID
}

func (s Token) IsInUse() bool {
	return s.InUse
}

func (s Token) IsCorrupt() bool {
	return s.Corrupt
}

func (s Token) String() string {
	return fmt.Sprintf("Token[%d,used=%t,internal=%t,name=%s]", s.ID, s.InUse, s.Internal, formatReference(s.NameID))
}
