package kml

// Assembler turns node trees into response bodies for one container.
type Assembler struct {
	container Container
	opts      EncodeOptions
}

// NewAssembler fails with errs.ErrConfiguration for an unknown container.
func NewAssembler(container string, indent bool) (*Assembler, error) {
	c, err := ContainerFor(container)
	if err != nil {
		return nil, err
	}
	return &Assembler{container: c, opts: EncodeOptions{Indent: indent}}, nil
}

func (a *Assembler) Container() Container { return a.container }

// Output is a framed document ready to be written.
type Output struct {
	Body        []byte
	ContentType string
	// Filename is the document name plus the container extension.
	Filename  string
	Container Container
}

// Assemble serializes doc. Debug output always uses the plain container.
func (a *Assembler) Assemble(doc *Node, debug bool) (*Output, error) {
	c := a.container
	if debug {
		c = Plain
	}
	raw, err := Marshal(doc, a.opts)
	if err != nil {
		return nil, err
	}
	body, err := c.Wrap(doc.Name, raw)
	if err != nil {
		return nil, err
	}
	return &Output{
		Body:        body,
		ContentType: c.ContentType(),
		Filename:    doc.Name + c.Ext(),
		Container:   c,
	}, nil
}

// Ext is the extension used in NetworkLink hrefs.
func (a *Assembler) Ext(debug bool) string {
	if debug {
		return Plain.Ext()
	}
	return a.container.Ext()
}
