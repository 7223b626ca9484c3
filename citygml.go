package umi

import (
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"strings"
)

const citygmlHeader = `<?xml version="1.0" encoding="UTF-8"?>
`

// CityGML 2.0 document structures, LOD1 buildings only.
type cityModel struct {
	XMLName        xml.Name `xml:"core:CityModel"`
	GML            string   `xml:"xmlns:gml,attr"`
	Core           string   `xml:"xmlns:core,attr"`
	Bldg           string   `xml:"xmlns:bldg,attr"`
	Gen            string   `xml:"xmlns:gen,attr"`
	XLink          string   `xml:"xmlns:xlink,attr"`
	XSI            string   `xml:"xmlns:xsi,attr"`
	SchemaLocation string   `xml:"xsi:schemaLocation,attr"`

	BoundedBy        gmlBoundedBy          `xml:"gml:boundedBy"`
	CityObjectMember []gmlCityObjectMember `xml:"core:cityObjectMember"`
}

type gmlBoundedBy struct {
	Envelope gmlEnvelope `xml:"gml:Envelope"`
}

type gmlEnvelope struct {
	SrsName      string `xml:"srsName,attr,omitempty"`
	SrsDimension string `xml:"srsDimension,attr,omitempty"`
	LowerCorner  string `xml:"gml:lowerCorner"`
	UpperCorner  string `xml:"gml:upperCorner"`
}

type gmlCityObjectMember struct {
	Building gmlBuilding `xml:"bldg:Building"`
}

type gmlBuilding struct {
	ID             string            `xml:"gml:id,attr"`
	MeasuredHeight gmlMeasuredHeight `xml:"bldg:measuredHeight"`
	Lod1Solid      gmlLod1Solid      `xml:"bldg:lod1Solid"`
}

type gmlMeasuredHeight struct {
	Value string `xml:",chardata"`
	UOM   string `xml:"uom,attr"`
}

type gmlLod1Solid struct {
	Solid gmlSolid `xml:"gml:Solid"`
}

type gmlSolid struct {
	ID       string      `xml:"gml:id,attr"`
	Exterior gmlExterior `xml:"gml:exterior"`
}

type gmlExterior struct {
	CompositeSurface gmlCompositeSurface `xml:"gml:CompositeSurface"`
}

type gmlCompositeSurface struct {
	SurfaceMember []gmlSurfaceMember `xml:"gml:surfaceMember"`
}

type gmlSurfaceMember struct {
	Polygon gmlPolygon `xml:"gml:Polygon"`
}

type gmlPolygon struct {
	ID       string             `xml:"gml:id,attr"`
	Exterior gmlPolygonExterior `xml:"gml:exterior"`
}

type gmlPolygonExterior struct {
	LinearRing gmlLinearRing `xml:"gml:LinearRing"`
}

type gmlLinearRing struct {
	PosList string `xml:"gml:posList"`
}

// buildCityModel assembles a LOD1 city model from the project's building
// records, in local model coordinates.
func (p *Project) buildCityModel() *cityModel {
	model := &cityModel{
		GML:            "http://www.opengis.net/gml",
		Core:           "http://www.opengis.net/citygml/2.0",
		Bldg:           "http://www.opengis.net/citygml/building/2.0",
		Gen:            "http://www.opengis.net/citygml/generics/2.0",
		XLink:          "http://www.w3.org/1999/xlink",
		XSI:            "http://www.w3.org/2001/XMLSchema-instance",
		SchemaLocation: "http://www.opengis.net/citygml/2.0 http://schemas.opengis.net/citygml/2.0/cityGMLBase.xsd http://www.opengis.net/citygml/building/2.0 http://schemas.opengis.net/citygml/building/2.0/building.xsd",
	}

	minX, minY, minZ := math.Inf(1), math.Inf(1), math.Inf(1)
	maxX, maxY, maxZ := math.Inf(-1), math.Inf(-1), math.Inf(-1)
	solids := 0
	for _, rec := range p.Records {
		// records restored from an archive may lack a solid
		if rec.Solid == nil {
			continue
		}
		solids++
		for _, v := range rec.Solid.Vertices {
			minX, maxX = math.Min(minX, v.X), math.Max(maxX, v.X)
			minY, maxY = math.Min(minY, v.Y), math.Max(maxY, v.Y)
			minZ, maxZ = math.Min(minZ, v.Z), math.Max(maxZ, v.Z)
		}
		model.CityObjectMember = append(model.CityObjectMember, gmlCityObjectMember{
			Building: buildingMember(rec),
		})
	}
	if solids > 0 {
		model.BoundedBy.Envelope = gmlEnvelope{
			SrsDimension: "3",
			LowerCorner:  fmt.Sprintf("%f %f %f", minX, minY, minZ),
			UpperCorner:  fmt.Sprintf("%f %f %f", maxX, maxY, maxZ),
		}
	}
	return model
}

func buildingMember(rec BuildingRecord) gmlBuilding {
	b := gmlBuilding{
		ID: rec.FID,
		MeasuredHeight: gmlMeasuredHeight{
			Value: fmt.Sprintf("%.2f", rec.Solid.Height()),
			UOM:   "m",
		},
		Lod1Solid: gmlLod1Solid{
			Solid: gmlSolid{ID: fmt.Sprintf("%s-solid", rec.FID)},
		},
	}
	for i, face := range rec.Solid.Faces {
		member := gmlSurfaceMember{
			Polygon: gmlPolygon{
				ID: fmt.Sprintf("%s-polygon-%d", rec.FID, i),
				Exterior: gmlPolygonExterior{
					LinearRing: gmlLinearRing{PosList: facePosList(rec.Solid, face)},
				},
			},
		}
		b.Lod1Solid.Solid.Exterior.CompositeSurface.SurfaceMember = append(
			b.Lod1Solid.Solid.Exterior.CompositeSurface.SurfaceMember, member)
	}
	return b
}

// facePosList renders a face ring as a closed coordinate list.
func facePosList(solid *Solid, face []int) string {
	var b strings.Builder
	write := func(idx int) {
		v := solid.Vertices[idx]
		fmt.Fprintf(&b, "%f %f %f", v.X, v.Y, v.Z)
	}
	for _, idx := range face {
		write(idx)
		b.WriteByte(' ')
	}
	if len(face) > 0 {
		write(face[0])
	}
	return b.String()
}

func (p *Project) exportCityGML(path string) error {
	out, err := xml.MarshalIndent(p.buildCityModel(), "", "  ")
	if err != nil {
		return fmt.Errorf("generating city model: %w", err)
	}
	return os.WriteFile(path, append([]byte(citygmlHeader), out...), 0644)
}
