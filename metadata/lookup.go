package metadata

import (
	"go-substrate-client/codec"
)

// Type returns the registry type with the given id
func (m *Metadata) Type(id uint32) (*codec.TypeDescriptor, bool) {
	t, ok := m.types[id]
	return t, ok
}

func (m *Metadata) Pallet(name string) (*Pallet, bool) {
	p, ok := m.palletsByName[name]
	return p, ok
}

func (m *Metadata) PalletByIndex(index uint8) (*Pallet, bool) {
	p, ok := m.palletsByIndex[index]
	return p, ok
}

// Call resolves a call by pallet and call name
func (m *Metadata) Call(pallet, call string) (PalletVariant, bool) {
	p, ok := m.Pallet(pallet)
	if !ok || p.Calls == nil {
		return PalletVariant{}, false
	}
	v, ok := p.Calls.VariantByName(call)
	if !ok {
		return PalletVariant{}, false
	}
	return PalletVariant{Pallet: p, Variant: v}, true
}

// Event resolves an event by its pallet and variant indices
func (m *Metadata) Event(palletIndex, eventIndex uint8) (PalletVariant, bool) {
	p, ok := m.PalletByIndex(palletIndex)
	if !ok {
		return PalletVariant{}, false
	}
	return p.variantByIndex(p.Events, eventIndex)
}

func (m *Metadata) EventByName(pallet, event string) (PalletVariant, bool) {
	p, ok := m.Pallet(pallet)
	if !ok || p.Events == nil {
		return PalletVariant{}, false
	}
	v, ok := p.Events.VariantByName(event)
	if !ok {
		return PalletVariant{}, false
	}
	return PalletVariant{Pallet: p, Variant: v}, true
}

// Error resolves a pallet error by its pallet and variant indices
func (m *Metadata) Error(palletIndex, errorIndex uint8) (PalletVariant, bool) {
	p, ok := m.PalletByIndex(palletIndex)
	if !ok {
		return PalletVariant{}, false
	}
	return p.variantByIndex(p.Errors, errorIndex)
}

func (m *Metadata) Constant(pallet, name string) (*Constant, bool) {
	p, ok := m.Pallet(pallet)
	if !ok {
		return nil, false
	}
	return p.Constant(name)
}

func (m *Metadata) Storage(pallet, item string) (*StorageEntry, bool) {
	p, ok := m.Pallet(pallet)
	if !ok {
		return nil, false
	}
	return p.StorageEntry(item)
}

func (p *Pallet) Constant(name string) (*Constant, bool) {
	for _, c := range p.Constants {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

func (p *Pallet) StorageEntry(name string) (*StorageEntry, bool) {
	for _, e := range p.Storage {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

func (p *Pallet) variantByIndex(t *codec.TypeDescriptor, index uint8) (PalletVariant, bool) {
	if t == nil {
		return PalletVariant{}, false
	}
	v, ok := t.VariantByIndex(index)
	if !ok {
		return PalletVariant{}, false
	}
	return PalletVariant{Pallet: p, Variant: v}, true
}

// Decode decodes the constant's value bytes
func (c *Constant) Decode() (codec.Value, error) {
	v, _, err := codec.Decode(c.Value, c.Type)
	return v, err
}
