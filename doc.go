// Package dbf reads and writes dBase III, dBase IV/FoxPro and Visual FoxPro
// tables (.dbf) together with their memo companions (.dbt, .fpt).
//
// A table is opened with Open for reading or OpenForWrite for in-place
// updates, and new tables are laid out with a TableWriterBuilder. Records are
// ordered name/value mappings whose values are typed (Character, Numeric,
// Logical, Date, ...); the zero value of each type is the blank value.
//
//	r, err := dbf.Open("people.dbf", nil)
//	if err != nil {
//		return err
//	}
//	defer r.Close()
//	it := r.Records()
//	for {
//		rec, err := it.Next()
//		if err == io.EOF {
//			break
//		}
//		...
//	}
//
// Writers must be closed to patch the record counter into the header; Update
// and CreateWith take care of that.
package dbf
