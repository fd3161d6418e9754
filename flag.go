package dbf

func hasFlag(b, flag uint8) bool { return b&flag != 0 }

// Table flags, header offset 28 (VisualFoxPro).
const (
	TableStructuralCDX uint8 = 0x01
	TableHasMemo       uint8 = 0x02
	TableIsDatabase    uint8 = 0x04
)

// Field flags, descriptor offset 18 (VisualFoxPro).
const (
	FieldSystem   uint8 = 0x01
	FieldNullable uint8 = 0x02
	FieldBinary   uint8 = 0x04
	FieldAutoInc  uint8 = 0x0C
)
