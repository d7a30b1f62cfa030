package labels

// DataBlock contains the bytes that a data directive emits. Values that
// could not be evaluated are marked as unknown.
type DataBlock struct {
	Address uint16
	Line    int
	Label   string // label defined at the start of the block, if any
	Bytes   []byte
	Known   []bool
}

// Complete returns whether all bytes of the block are known.
func (d DataBlock) Complete() bool {
	for _, known := range d.Known {
		if !known {
			return false
		}
	}
	return true
}

// Len returns the number of bytes of the block.
func (d DataBlock) Len() int {
	return len(d.Bytes)
}

// add appends a value in little endian byte order.
func (d *DataBlock) add(value, width int, known bool) {
	for i := range width {
		if !known {
			d.Bytes = append(d.Bytes, 0)
		} else {
			d.Bytes = append(d.Bytes, byte(value>>(8*i)))
		}
		d.Known = append(d.Known, known)
	}
}
