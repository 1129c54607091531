package partition

import (
	"testing"
)

func TestKey_ObjectKey(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "pre-kindergarten",
			key:  Key{Year: 2020, Grade: "grade-pk"},
			want: "2020/grade-pk/enrollment.json",
		},
		{
			name: "numeric grade",
			key:  Key{Year: 2021, Grade: "99"},
			want: "2021/99/enrollment.json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.ObjectKey(); got != tt.want {
				t.Errorf("ObjectKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_ObjectKeyWithPrefix(t *testing.T) {
	key := Key{Year: 2020, Grade: "grade-1"}

	tests := []struct {
		prefix string
		want   string
	}{
		{"", "2020/grade-1/enrollment.json"},
		{"/", "2020/grade-1/enrollment.json"},
		{"ccd", "ccd/2020/grade-1/enrollment.json"},
		{"/raw/ccd/", "raw/ccd/2020/grade-1/enrollment.json"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			if got := key.ObjectKeyWithPrefix(tt.prefix); got != tt.want {
				t.Errorf("ObjectKeyWithPrefix(%q) = %q, want %q", tt.prefix, got, tt.want)
			}
		})
	}
}

func TestKey_EndpointURL(t *testing.T) {
	key := Key{Year: 2020, Grade: "grade-pk"}
	want := "https://educationdata.urban.org/api/v1/schools/ccd/enrollment/2020/grade-pk/"

	for _, base := range []string{
		"https://educationdata.urban.org/api/v1/schools/ccd/enrollment",
		"https://educationdata.urban.org/api/v1/schools/ccd/enrollment/",
	} {
		if got := key.EndpointURL(base); got != want {
			t.Errorf("EndpointURL(%q) = %q, want %q", base, got, want)
		}
	}
}

func TestKey_Validate(t *testing.T) {
	tests := []struct {
		name    string
		key     Key
		wantErr bool
	}{
		{"valid", Key{Year: 2020, Grade: "grade-pk"}, false},
		{"zero year", Key{Year: 0, Grade: "grade-pk"}, true},
		{"negative year", Key{Year: -1, Grade: "grade-pk"}, true},
		{"empty grade", Key{Year: 2020, Grade: ""}, true},
		{"blank grade", Key{Year: 2020, Grade: "  "}, true},
		{"slash in grade", Key{Year: 2020, Grade: "grade/1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.key.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProduct(t *testing.T) {
	keys := Product([]int{2020, 2021}, []string{"grade-pk", "grade-1"})

	want := []Key{
		{2020, "grade-pk"},
		{2020, "grade-1"},
		{2021, "grade-pk"},
		{2021, "grade-1"},
	}

	if len(keys) != len(want) {
		t.Fatalf("len(Product) = %d, want %d", len(keys), len(want))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Product[%d] = %v, want %v", i, keys[i], want[i])
		}
	}
}

func TestProduct_Empty(t *testing.T) {
	if keys := Product(nil, []string{"grade-pk"}); len(keys) != 0 {
		t.Errorf("Product(nil, grades) = %v, want empty", keys)
	}
	if keys := Product([]int{2020}, nil); len(keys) != 0 {
		t.Errorf("Product(years, nil) = %v, want empty", keys)
	}
}
