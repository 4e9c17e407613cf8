package util

import (
	"reflect"
	"testing"
)

type Audit struct {
	CreatedBy string
}

type TestUser struct {
	ID     int64  `db:"id,key"`
	Name   string `db:"name"`
	Region string
	*Audit
	internal string
}

func accessorFor(t *testing.T, typ reflect.Type, name string) Accessor {
	t.Helper()
	field, ok := typ.FieldByName(name)
	if !ok {
		t.Fatalf("field %s not found", name)
	}
	return NewAccessor(field, field.Index)
}

// TestParseDBTag tests column name and option extraction.
func TestParseDBTag(t *testing.T) {
	tests := []struct {
		tag      string
		wantCol  string
		wantOpts []string
	}{
		{tag: "name", wantCol: "name"},
		{tag: "id,key", wantCol: "id", wantOpts: []string{"key"}},
		{tag: "id,pk", wantCol: "id", wantOpts: []string{"key"}},
		{tag: ",identity", wantCol: "", wantOpts: []string{"identity"}},
		{tag: "code, KEY , readonly", wantCol: "code", wantOpts: []string{"key", "readonly"}},
		{tag: "-", wantCol: "-"},
	}

	for _, tt := range tests {
		col, opts := ParseDBTag(tt.tag)
		if col != tt.wantCol {
			t.Errorf("ParseDBTag(%q) column = %q, want %q", tt.tag, col, tt.wantCol)
		}
		if len(opts) != len(tt.wantOpts) {
			t.Errorf("ParseDBTag(%q) opts = %v, want %v", tt.tag, opts, tt.wantOpts)
		}
		for _, o := range tt.wantOpts {
			if !opts.Has(o) {
				t.Errorf("ParseDBTag(%q) missing option %q", tt.tag, o)
			}
		}
	}
}

// TestAccessor_GetSet tests reads and writes through a cached index path.
func TestAccessor_GetSet(t *testing.T) {
	typ := reflect.TypeOf(TestUser{})
	name := accessorFor(t, typ, "Name")

	user := TestUser{Name: "Alice"}
	row := reflect.ValueOf(&user).Elem()

	if got := name.Get(row); got != "Alice" {
		t.Errorf("Get() = %v, want Alice", got)
	}

	if err := name.Set(row, "Bob"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if user.Name != "Bob" {
		t.Errorf("Name = %s, want Bob", user.Name)
	}

	// Convertible values are converted.
	id := accessorFor(t, typ, "ID")
	if err := id.Set(row, 42); err != nil {
		t.Fatalf("Set(int) error = %v", err)
	}
	if user.ID != 42 {
		t.Errorf("ID = %d, want 42", user.ID)
	}

	if err := id.Set(row, struct{}{}); err == nil {
		t.Error("Set(struct{}) should fail")
	}
}

// TestAccessor_EmbeddedPointer tests nil embedded pointers on the path.
func TestAccessor_EmbeddedPointer(t *testing.T) {
	typ := reflect.TypeOf(TestUser{})
	createdBy := accessorFor(t, typ, "CreatedBy")

	user := TestUser{}
	row := reflect.ValueOf(&user).Elem()

	if got := createdBy.Get(row); got != nil {
		t.Errorf("Get() through nil embedded pointer = %v, want nil", got)
	}

	if err := createdBy.Set(row, "admin"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if user.Audit == nil || user.CreatedBy != "admin" {
		t.Errorf("CreatedBy = %+v, want admin", user.Audit)
	}
}

// TestAccessor_Pointer tests scan targets through embedded pointers.
func TestAccessor_Pointer(t *testing.T) {
	createdBy := accessorFor(t, reflect.TypeOf(TestUser{}), "CreatedBy")

	user := TestUser{}
	ptr, err := createdBy.Pointer(reflect.ValueOf(&user).Elem())
	if err != nil {
		t.Fatalf("Pointer() error = %v", err)
	}
	*(ptr.(*string)) = "scanner"
	if user.Audit == nil || user.CreatedBy != "scanner" {
		t.Errorf("CreatedBy = %+v, want scanner", user.Audit)
	}

	if _, err := createdBy.Pointer(reflect.ValueOf(TestUser{})); err == nil {
		t.Error("Pointer() on an unaddressable row should fail")
	}
}

// TestAccessor_SetInt64 tests identity write-back including pointers.
func TestAccessor_SetInt64(t *testing.T) {
	type Row struct {
		ID  int32
		Ref *uint16
	}
	typ := reflect.TypeOf(Row{})
	r := Row{}
	row := reflect.ValueOf(&r).Elem()

	if err := accessorFor(t, typ, "ID").SetInt64(row, 77); err != nil {
		t.Fatalf("SetInt64() error = %v", err)
	}
	if r.ID != 77 {
		t.Errorf("ID = %d, want 77", r.ID)
	}

	if err := accessorFor(t, typ, "Ref").SetInt64(row, 9); err != nil {
		t.Fatalf("SetInt64(pointer) error = %v", err)
	}
	if r.Ref == nil || *r.Ref != 9 {
		t.Errorf("Ref = %v, want 9", r.Ref)
	}

	if err := accessorFor(t, typ, "Ref").SetInt64(row, 70000); err == nil {
		t.Error("SetInt64(70000) into uint16 should overflow")
	}
}

// TestSetIdentityValue_Overflow tests overflow detection per integer width.
func TestSetIdentityValue_Overflow(t *testing.T) {
	tests := []struct {
		name    string
		target  interface{}
		id      int64
		wantErr bool
	}{
		{"int8 fits", new(int8), 127, false},
		{"int8 overflow", new(int8), 128, true},
		{"int16 overflow", new(int16), -32769, true},
		{"int32 fits", new(int32), 2147483647, false},
		{"uint8 negative", new(uint8), -1, true},
		{"uint32 fits", new(uint32), 4294967295, false},
		{"uint64 negative", new(uint64), -5, true},
		{"string unsupported", new(string), 1, true},
	}

	for _, tt := range tests {
		v := reflect.ValueOf(tt.target).Elem()
		err := SetIdentityValue(v, tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: SetIdentityValue() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}

	if err := SetIdentityValue(reflect.ValueOf(int64(1)), 1); err == nil {
		t.Error("SetIdentityValue() on non-settable value should fail")
	}
}

// TestIndirect tests pointer dereferencing.
func TestIndirect(t *testing.T) {
	u := &TestUser{Name: "x"}
	v, err := Indirect(reflect.ValueOf(&u))
	if err != nil {
		t.Fatalf("Indirect() error = %v", err)
	}
	if v.Type() != reflect.TypeOf(TestUser{}) {
		t.Errorf("Indirect() type = %s", v.Type())
	}

	var nilUser *TestUser
	if _, err := Indirect(reflect.ValueOf(nilUser)); err == nil {
		t.Error("Indirect(nil) should fail")
	}
	if _, err := Indirect(reflect.ValueOf(5)); err == nil {
		t.Error("Indirect(int) should fail")
	}
}
