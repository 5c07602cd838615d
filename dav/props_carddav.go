package dav

import "encoding/xml"

// CardDAV property names (RFC 6352).
var (
	PropAddressbookHomeSet        = xml.Name{Space: NamespaceCardDAV, Local: "addressbook-home-set"}
	PropAddressbookDescription    = xml.Name{Space: NamespaceCardDAV, Local: "addressbook-description"}
	PropSupportedAddressData      = xml.Name{Space: NamespaceCardDAV, Local: "supported-address-data"}
	PropAddressData               = xml.Name{Space: NamespaceCardDAV, Local: "address-data"}
	PropAddressbookMaxResourceSize = xml.Name{Space: NamespaceCardDAV, Local: "max-resource-size"}
)

type AddressbookHomeSet struct{ Hrefs []string }

func (p *AddressbookHomeSet) Name() xml.Name { return PropAddressbookHomeSet }

type AddressbookDescription struct{ Value string }

func (p *AddressbookDescription) Name() xml.Name { return PropAddressbookDescription }

type AddressDataType struct {
	ContentType string
	Version     string
}

type SupportedAddressData struct{ Types []AddressDataType }

func (p *SupportedAddressData) Name() xml.Name { return PropSupportedAddressData }

// AddressData carries the vCard payload verbatim, line endings preserved.
type AddressData struct{ Data string }

func (p *AddressData) Name() xml.Name { return PropAddressData }

type AddressbookMaxResourceSize struct{ Value int64 }

func (p *AddressbookMaxResourceSize) Name() xml.Name { return PropAddressbookMaxResourceSize }

func init() {
	hrefSetProperty(PropAddressbookHomeSet, func(hrefs []string) Property {
		return &AddressbookHomeSet{Hrefs: hrefs}
	})
	textProperty(PropAddressbookDescription, func(s string) Property {
		return &AddressbookDescription{Value: s}
	})
	textProperty(PropAddressData, func(s string) Property { return &AddressData{Data: s} })
	intProperty(PropAddressbookMaxResourceSize, func(v int64) Property {
		return &AddressbookMaxResourceSize{Value: v}
	})
	RegisterProperty(PropSupportedAddressData, decodeSupportedAddressData)
}

func decodeSupportedAddressData(d *xml.Decoder, _ xml.StartElement) (Property, error) {
	p := &SupportedAddressData{}
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name == (xml.Name{Space: NamespaceCardDAV, Local: "address-data-type"}) {
				var dt AddressDataType
				for _, a := range t.Attr {
					switch a.Name.Local {
					case "content-type":
						dt.ContentType = a.Value
					case "version":
						dt.Version = a.Value
					}
				}
				p.Types = append(p.Types, dt)
			}
			if err := d.Skip(); err != nil {
				return nil, err
			}
		case xml.EndElement:
			return p, nil
		}
	}
}
