package core

import (
	"strings"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
)

// Canonical property names.
const (
	PropID             = "_id"
	PropSKU            = "acr_sku"
	PropStatus         = "status"
	PropPartType       = "part_type"
	PropPositionType   = "position_type"
	PropABSType        = "abs_type"
	PropBoltPattern    = "bolt_pattern"
	PropDriveType      = "drive_type"
	PropSpecifications = "specifications"
	PropMake           = "make"
	PropModel          = "model"
	PropStartYear      = "start_year"
	PropEndYear        = "end_year"
	PropAlias          = "alias"
	PropCanonicalName  = "canonical_name"
	PropAliasType      = "alias_type"
)

// Image URL columns are read and carried on PartRow but never reconciled.
var imageProperties = []string{
	"image_url_front",
	"image_url_back",
	"image_url_top",
	"image_url_other",
}

// brandDisplay is the column title of each brand.
var brandDisplay = map[string]string{
	"NATIONAL": "National",
	"ATV":      "ATV",
	"SYD":      "SYD",
	"TMK":      "TMK",
	"GROB":     "GROB",
	"RACE":     "RACE",
	"OEM":      "OEM",
	"OEM_2":    "OEM 2",
	"GMB":      "GMB",
	"GSP":      "GSP",
	"FAG":      "FAG",
}

// BrandProperty returns the canonical column of a brand, e.g. "national_skus".
func BrandProperty(brand string) string {
	return strings.ToLower(brand) + "_skus"
}

func idColumn() ColumnSpec {
	return ColumnSpec{Property: PropID, Headers: []string{"ID", "Internal ID", "ID Interno"}, Exported: true}
}

func statusColumn() ColumnSpec {
	return ColumnSpec{Property: PropStatus, Headers: []string{"Status", "Estado", "Estatus"}, Exported: true}
}

func partsSheet() SheetDefinition {
	cols := []ColumnSpec{
		idColumn(),
		{Property: PropSKU, Headers: []string{"ACR SKU", "SKU ACR", "SKU"}, Required: true, Exported: true},
		statusColumn(),
		{Property: PropPartType, Headers: []string{"Part Type", "Tipo de Parte", "Tipo"}, Exported: true},
		{Property: PropPositionType, Headers: []string{"Position", "Position Type", "Posición", "Posicion"}, Exported: true},
		{Property: PropABSType, Headers: []string{"ABS Type", "ABS", "Tipo ABS"}, Exported: true},
		{Property: PropBoltPattern, Headers: []string{"Bolt Pattern", "Patrón de Birlos", "Birlos"}, Exported: true},
		{Property: PropDriveType, Headers: []string{"Drive Type", "Tracción", "Traccion"}, Exported: true},
		{Property: PropSpecifications, Headers: []string{"Specifications", "Especificaciones"}, Exported: true},
	}
	for _, brand := range catalog.Brands {
		display := brandDisplay[brand]
		cols = append(cols, ColumnSpec{
			Property: BrandProperty(brand),
			Headers:  []string{display + " SKUs", display + " SKU"},
			Short:    []string{display},
			Brand:    brand,
			Exported: true,
		})
	}
	for _, p := range imageProperties {
		view := strings.TrimPrefix(p, "image_url_")
		cols = append(cols, ColumnSpec{
			Property: p,
			Headers:  []string{"Image URL " + strings.ToUpper(view[:1]) + view[1:]},
		})
	}

	return SheetDefinition{
		Type:      SheetParts,
		Label:     "Parts",
		Names:     []string{"Parts", "Partes", "Catalog", "Catálogo"},
		Required:  true,
		Order:     1,
		KeyColumn: PropSKU,
		Columns:   cols,
	}
}

func applicationsSheet() SheetDefinition {
	return SheetDefinition{
		Type:      SheetApplications,
		Label:     "Vehicle Applications",
		Names:     []string{"Vehicle Applications", "Applications", "Aplicaciones", "Aplicaciones Vehiculares"},
		Required:  true,
		Order:     2,
		KeyColumn: PropSKU,
		Columns: []ColumnSpec{
			idColumn(),
			{Property: PropSKU, Headers: []string{"ACR SKU", "SKU ACR", "SKU"}, Required: true, Exported: true},
			statusColumn(),
			{Property: PropMake, Headers: []string{"Make", "Marca"}, Required: true, Exported: true},
			{Property: PropModel, Headers: []string{"Model", "Modelo"}, Required: true, Exported: true},
			{Property: PropStartYear, Headers: []string{"Start Year", "Año Inicio", "Year From"}, Exported: true},
			{Property: PropEndYear, Headers: []string{"End Year", "Año Fin", "Year To"}, Exported: true},
		},
	}
}

func aliasesSheet() SheetDefinition {
	return SheetDefinition{
		Type:      SheetAliases,
		Label:     "Vehicle Aliases",
		Names:     []string{"Vehicle Aliases", "Aliases", "Alias", "Alias Vehiculares"},
		Order:     3,
		KeyColumn: PropAlias,
		Columns: []ColumnSpec{
			idColumn(),
			{Property: PropAlias, Headers: []string{"Alias", "Apodo"}, Required: true, Exported: true},
			{Property: PropCanonicalName, Headers: []string{"Canonical Name", "Nombre Canónico", "Nombre Canonico"}, Required: true, Exported: true},
			{Property: PropAliasType, Headers: []string{"Alias Type", "Tipo de Alias"}, Required: true, Exported: true},
			statusColumn(),
		},
	}
}

func init() {
	Register(partsSheet())
	Register(applicationsSheet())
	Register(aliasesSheet())
}

// mustSheet returns a registered sheet definition.
func mustSheet(t SheetType) SheetDefinition {
	def, ok := Get(t)
	if !ok {
		panic("sheet not registered: " + string(t))
	}
	return def
}
