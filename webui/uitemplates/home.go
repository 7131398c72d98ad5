package uitemplates

import "html/template"

type HomeParams struct {
	LoggedIn bool

	OwnedGalleries  []HomeGallery
	SharedGalleries []HomeGallery
}

type HomeGallery struct {
	Name       string
	ImagesLink string
}

var homeText = `{{define "title"}}Home{{end}}

{{define "content"}}
{{if .LoggedIn}}
<h2>Your Galleries</h2>
<table>
  <thead>
    <tr><td>Gallery Name</td></tr>
  </thead>
  <tbody>
  {{range .OwnedGalleries}}
    <tr><td><a href="{{.ImagesLink}}">{{.Name}}</a></td></tr>
  {{else}}
    <tr><td>No galleries yet.</td></tr>
  {{end}}
  </tbody>
</table>

<h2>Shared With You</h2>
<table>
  <thead>
    <tr><td>Gallery Name</td></tr>
  </thead>
  <tbody>
  {{range .SharedGalleries}}
    <tr><td><a href="{{.ImagesLink}}">{{.Name}}</a></td></tr>
  {{else}}
    <tr><td>Nothing has been shared with you.</td></tr>
  {{end}}
  </tbody>
</table>
{{else}}
<p>Sign in to see your galleries.</p>
{{end}}
{{end}}
`

var HomeTemplate = template.Must(template.Must(template.New("base").Parse(baseText)).Parse(homeText))
